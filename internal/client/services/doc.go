// Package services contains the application services of the device agent.
// RecordService is the mutating layer that sets the dirty flags and delete
// intents consumed by the reconciler; DeviceService owns device identity and
// the remote session.
package services
