// Package dispatch maps command names to operations and invokes them with
// positionally coerced arguments.
//
// A Table is built at startup from one or more Providers:
//
//	type Calculator struct{}
//
//	func (c *Calculator) RegisterCommands(t *dispatch.Table) error {
//	    t.MustRegister("Add", dispatch.Func2(func(ctx context.Context, a, b int) (int, error) {
//	        return a + b, nil
//	    }))
//	    return nil
//	}
//
// Invoke turns an inbound command envelope into the reply envelope the caller
// should send back: "__response" carrying the result, or "__error" when
// coercion fails, the operation returns an error, or the operation panics.
// Unknown commands produce no reply at all.
//
// The reserved "GetName" query is answered with the table's label unless an
// operation of that name has been registered explicitly.
package dispatch
