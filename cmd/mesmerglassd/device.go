package main

import "github.com/sirupsen/logrus"

// loggingDeviceController stands in for the BLE device-control
// collaborator, which lives outside the core: it just logs scripted
// pulses rather than driving real hardware.
type loggingDeviceController struct {
	log *logrus.Entry
}

func (d loggingDeviceController) Pulse(intensity float64, durationMS int) {
	d.log.WithField("intensity", intensity).WithField("duration_ms", durationMS).Info("device pulse")
}
