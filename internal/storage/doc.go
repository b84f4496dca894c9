// Package storage reconciles libvirt storage pools and the volumes inside
// them.
//
// Pools are defined persistently and go through build (configure), start
// and stop before they are undefined. Volumes are created inside the pool
// named by params.pool; start can zero-fill them and stream an image
// downloaded over HTTP into them in ranged steps.
package storage
