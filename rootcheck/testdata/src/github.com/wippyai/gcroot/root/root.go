package root

type Context struct{}

type Rooted[T any] struct{ value T }

func New[T any](cx *Context, v T) *Rooted[T] { return &Rooted[T]{value: v} }

func (r *Rooted[T]) Handle() Handle[T]     { return Handle[T]{p: &r.value} }
func (r *Rooted[T]) Mut() MutableHandle[T] { return MutableHandle[T]{h: r.Handle()} }
func (r *Rooted[T]) Release()              {}

type Handle[T any] struct{ p *T }

func (h Handle[T]) Get() T { return *h.p }

type MutableHandle[T any] struct{ h Handle[T] }

func (m MutableHandle[T]) Set(v T) { *m.h.p = v }
