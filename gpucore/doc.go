// Package gpucore defines the GPU device abstraction used by framegraph.
//
// The render graph, the pipeline and binding caches and the draw objects
// talk to the GPU exclusively through the [Device] interface. Resources are
// referred to by opaque IDs so that the caches can key on resource identity
// without holding backend handles:
//
//	+-----------+   +------------+   +-----------+
//	|   graph   |-->|  pipeline  |-->|  binding  |
//	+-----+-----+   +-----+------+   +-----+-----+
//	      |               |                |
//	      +---------------+----------------+
//	                      |
//	               +------v------+
//	               |   gpucore   |
//	               |  (Device)   |
//	               +------+------+
//	                      |
//	            +---------v----------+
//	            |   backend/native   |
//	            |    (wgpu HAL)      |
//	            +--------------------+
//
// Enumerations (formats, usages, topology, vertex layouts) are taken from
// github.com/gogpu/gputypes so descriptors pass through to the HAL
// unchanged.
//
// # Resource lifecycle
//
//   - Resources are created via Create* methods and released via Destroy*.
//   - IDs are never reused after destruction; a new allocation always yields
//     a new ID. Caches rely on this to detect reallocation.
//   - Destroying a resource that an in-flight submission still reads is
//     undefined behavior. [CommandEncoder.Submit] blocks until the GPU has
//     finished, so destruction after Submit returns is safe.
package gpucore
