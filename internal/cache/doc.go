// Package cache provides the build-once store behind the pipeline and
// binding caches.
//
// A [Store] maps a comparable key to a value produced by a build function.
// Each key is built at most once for the lifetime of the store, no matter
// how many goroutines request it concurrently:
//
//	s := cache.NewStore[string, gpucore.RenderPipelineID]()
//	id, err := s.GetOrBuild(key, func() (gpucore.RenderPipelineID, error) {
//	    return device.CreateRenderPipeline(desc)
//	})
//
// Entries stay until the owner removes them with DeleteFunc or Clear;
// there is no eviction policy. A failed build stores nothing, so the next
// request for the same key builds again.
//
// # Thread Safety
//
// Store is safe for concurrent use. Lookups take a read lock; builds run
// under the write lock with a double check so two racing misses on the
// same key produce one build.
package cache
