// Package asyncx holds the few concurrency helpers the services share.
//
// # Futures
//
// [Run] starts work in a goroutine and [Future.Await] collects it:
//
//	fut := asyncx.Run(func() (*profile.ProfileRecord, error) {
//	    return store.Get(ctx, ref)
//	})
//	rec, err := fut.Await()
//
// # Fan-out
//
// [All] runs functions of the same result type concurrently and returns
// their results in order once every one has finished.
//
// # Bounded calls
//
// [Bounded] and [BoundedErr] give a remote call its own deadline while
// ignoring cancellation of the caller's context. A client that disconnects
// mid-workflow therefore cannot interrupt a call whose outcome later steps
// depend on.
package asyncx
