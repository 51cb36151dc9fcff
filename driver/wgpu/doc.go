// Package wgpu implements the GPU driver on top of gogpu/wgpu.
//
// The driver owns one wgpu instance, adapter, device and queue for the
// process and maps the runtime's handles onto them. Build with the
// nogpu tag to compile the module without GPU support; the software
// driver then remains the only registered backend.
package wgpu
