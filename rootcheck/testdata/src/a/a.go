package a

import "github.com/wippyai/gcroot/root"

type holder struct {
	r *root.Rooted[int] // want `root.Rooted stored in a struct field`
	h root.Handle[int]  // want `root.Handle stored in a struct field`
	n int
}

var global root.Handle[int] // want `root.Handle in package variable global`

var roots []*root.Rooted[int] // want `root.Rooted used as a container element`

var count int

func leak(cx *root.Context) root.Handle[int] { // want `function returns root.Handle`
	r := root.New(cx, 1)
	defer r.Release()
	return r.Handle()
}

type getter interface {
	Mutable() root.MutableHandle[int] // want `function returns root.MutableHandle`
}

func use(h root.Handle[int]) int { return h.Get() }

func update(m root.MutableHandle[int]) { m.Set(3) }

func fine(cx *root.Context) int {
	r := root.New(cx, 2)
	defer r.Release()
	update(r.Mut())
	return use(r.Handle())
}

func containers() {
	m := map[string]root.MutableHandle[int]{} // want `root.MutableHandle used as a container element`
	ch := make(chan root.Handle[int])         // want `root.Handle used as a container element`
	_, _ = m, ch
}

func newRoot(cx *root.Context) *root.Rooted[int] {
	return root.New(cx, 4)
}

func closures(cx *root.Context) func() int {
	r := root.New(cx, 5)
	defer r.Release()
	h := r.Handle()
	m := r.Mut()

	n := func() int { return h.Get() }()
	defer func() { m.Set(n) }()

	go func() { // want `root.MutableHandle m captured by a goroutine`
		m.Set(1)
	}()
	go use(h) // want `root.Handle passed to a goroutine`

	return func() int { return h.Get() } // want `root.Handle h captured by a closure`
}

func shadowed(cx *root.Context) {
	r := root.New(cx, 6)
	defer r.Release()
	f := func(h root.Handle[int]) int { return h.Get() }
	_ = f(r.Handle())
}
