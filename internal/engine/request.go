package engine

import "context"

// Op is any engine operation.
type Op[In, Out any] func(context.Context, In) (Out, error)

// Request is a deferred call of one operation. It offers a callback style
// (Send) and a future style (Promise); both run the same operation and see
// the same result and error values. Each Send or Promise call runs the
// operation once more.
type Request[In, Out any] struct {
	ctx context.Context
	in  In
	op  Op[In, Out]
}

// Async prepares op(ctx, in) without running it.
func Async[In, Out any](ctx context.Context, in In, op Op[In, Out]) *Request[In, Out] {
	return &Request[In, Out]{ctx: ctx, in: in, op: op}
}

// Response carries the outcome handed to a Send callback.
type Response[Out any] struct {
	Data Out
	Err  error
}

// Send runs the operation in the background and calls cb exactly once with
// its outcome.
func (r *Request[In, Out]) Send(cb func(Response[Out])) {
	go func() {
		out, err := r.op(r.ctx, r.in)
		if cb != nil {
			cb(Response[Out]{Data: out, Err: err})
		}
	}()
}

// Promise starts the operation in the background.
func (r *Request[In, Out]) Promise() *Promise[Out] {
	p := &Promise[Out]{done: make(chan struct{})}
	r.Send(func(res Response[Out]) {
		p.res = res
		close(p.done)
	})
	return p
}

type Promise[Out any] struct {
	done chan struct{}
	res  Response[Out]
}

// Done is closed once the outcome is available.
func (p *Promise[Out]) Done() <-chan struct{} { return p.done }

// Await blocks until the operation completes or ctx is done. Giving up on
// ctx does not stop the operation.
func (p *Promise[Out]) Await(ctx context.Context) (Out, error) {
	select {
	case <-p.done:
		return p.res.Data, p.res.Err
	case <-ctx.Done():
		var zero Out
		return zero, ctx.Err()
	}
}
