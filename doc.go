// Package gcroot is a rooting and tracing protocol for a precise, moving,
// generational collector.
//
// Native code that holds managed references must make every one of them
// discoverable by the collector, and must tolerate the referent moving at
// any collection. This module provides the vocabulary for doing so.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	gcroot/
//	├── value/       Relocatable references (Ref) and tagged values (Value)
//	├── trace/       Tracer interface, edge helpers and per-type trace policies
//	├── gc/          Runtime: nursery, tenured heap, minor/major/incremental
//	│                collection, compaction, barriers, weak slots, finalizers
//	├── root/        Stack roots (Rooted), handles, persistent roots
//	├── native/      Handle table of native companions referenced from slots
//	├── zeal/        Debug collection scheduling from GCROOT_ZEAL
//	├── errors/      Structured error types
//	├── rootcheck/   Analyzer reporting roots and handles off the stack
//	└── cmd/         gcstress workload runner, rootcheck vet tool
//
// # Quick Start
//
// Create a runtime, root a new object, and let the collector move it:
//
//	rt, err := gc.New(gc.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Shutdown()
//
//	cx, err := root.NewContext(rt)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cx.Close()
//
//	ref, err := rt.NewObject(nodeClass)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	obj := root.New(cx, value.Object(ref))
//	defer obj.Release()
//
//	rt.Collect(gc.CollectShrinking, "example")
//	fmt.Println(rt.MustDeref(obj.Get().ToRef()).ID()) // unchanged
//
// # Rooting Rules
//
//   - A Ref held only in a Go local is invisible to the collector. Root it
//     (root.Rooted) before the next allocation or collection.
//   - Roots are released in reverse order of creation.
//   - Managed values stored inside native memory go in gc.Heap slots, and
//     the native owner must trace them.
//   - Handles are borrowed views and must not outlive their root.
//
// Run the rootcheck analyzer to catch roots stored in fields or containers.
//
// # Thread Safety
//
// A Runtime has a single mutator. Background finalizers run on their own
// goroutine and must not touch the heap.
package gcroot
