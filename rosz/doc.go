// Package rosz implements ROS 2 nodes over a generic pub/sub transport using
// the rmw_zenoh key expression and liveliness conventions.
//
// A Context owns one transport session, either the in-process memory bus or
// a NATS connection, and the graph cache built from liveliness tokens. Nodes
// are created from a Context and own their publishers, subscribers, clients,
// servers and parameter server.
//
// All resource types must be closed after use. Close is idempotent, and
// closing a Context closes every node it created.
//
// Subscriber callbacks run on the transport's delivery goroutine. Queueing
// subscribers and servers can instead be driven from one goroutine with a
// Selector:
//
//	sel := rosz.NewSelector()
//	rosz.AddSubscriber(sel, sub, onMessage)
//	rosz.AddServer(sel, srv, onRequest)
//	sel.AddTimer(100*time.Millisecond, onTick)
//	err := sel.Wait(ctx)
package rosz
