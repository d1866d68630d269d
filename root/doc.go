// Package root implements stack and persistent roots over a gc.Runtime.
//
// A Context is one mutator's execution context. It owns a LIFO list of the
// stack roots created for it:
//
//	cx, _ := root.NewContext(rt)
//	defer cx.Close()
//
//	obj := root.New(cx, value.Object(ref))
//	defer obj.Release()
//
//	callThatMayCollect(cx, obj.Handle())
//
// Roots must be released in reverse order of creation. Releasing out of
// order, using a root after release, and using a handle whose root is gone
// are protocol violations: they panic with an *errors.Error of kind
// protocol_violation. These checks are on by default; building with the
// gcroot_release tag disables the handle checks.
//
// # Handles
//
// Handle and MutableHandle are borrowed views of a live root, meant for
// function parameters. A function taking a Handle may trigger a collection:
// the handle proves its referent is rooted and re-reads the possibly moved
// value on every Get. Handles and Rooted values must not be stored in struct
// fields, containers or package variables, nor returned from functions; the
// rootcheck analyzer reports those uses.
//
// # Persistent roots
//
// Persistent is an explicitly managed root independent of any stack frame.
// Its zero value is an empty placeholder, so package-level roots can be
// declared before any runtime exists and initialized once one is running:
//
//	var cache root.Persistent[value.Value]
//
//	func setup(rt *gc.Runtime) error { return cache.Init(rt, value.NullValue()) }
//	func teardown()                  { cache.Reset() }
//
// Every Persistent must be Reset before gc.Runtime.Shutdown.
package root
