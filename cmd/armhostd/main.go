package main

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/armhost/pkg/fields"
	"github.com/runZeroInc/armhost/pkg/metrics"
	"github.com/runZeroInc/armhost/pkg/semihosting"
	"github.com/runZeroInc/armhost/pkg/target"
)

// drive simulates a firmware image making semihosting calls against the
// mock target, standing in for a real debug-probe trap handler.
func drive(s *semihosting.State, m *target.Mock) {
	m.SeedString(0x1000, "hello from target\n")
	for {
		if err := s.Dispatch(semihosting.SysWrite0, 0x1000); err != nil {
			logrus.WithError(err).Error("dispatch failed")
		}
		if err := s.Dispatch(semihosting.SysClock, 0); err != nil {
			logrus.WithError(err).Error("dispatch failed")
		}
		time.Sleep(time.Second)
	}
}

func main() {
	hostname, err := os.Hostname()
	if err != nil {
		panic(err)
	}

	collector := metrics.NewSemihostingCollector(prometheus.Labels{
		"app":      "armhostd",
		"hostname": hostname,
	})
	prometheus.MustRegister(collector)

	m := target.NewMock(binary.LittleEndian, false)

	s, err := semihosting.NewState(semihosting.Config{
		Target:        m,
		WordSizeBytes: int(fields.Word4),
		Cmdline:       "firmware.elf",
		Metrics:       collector,
		Logger:        logrus.StandardLogger(),
		SessionName:   "demo-target",
		PostResult: func(st *semihosting.State) {
			logrus.WithField("result", st.Result).Debug("semihosting op complete")
		},
	})
	if err != nil {
		panic(err)
	}
	s.Enable()

	go drive(s, m)

	http.Handle("/metrics", promhttp.Handler())
	fmt.Println("armhostd listening on :18080")
	if err := http.ListenAndServe(":18080", nil); err != nil {
		logrus.WithError(err).Fatal("listen")
	}
}
