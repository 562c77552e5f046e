// Package painpointcache is the pain point service consumed by editor
// integrations and the painpoint CLI.
//
// The service keeps an in-memory snapshot of the pain point table and serves
// non-forced reads from it. Forced reads go to the store. Point lookups that
// miss the snapshot go through a sturdyc-backed memo which also remembers ids
// the store does not have, so decorating a project tree does not re-query
// absent records on every repaint.
//
// Every public method has a total return type. Store failures are logged and
// counted, then surface as an empty collection, an absent record or false:
//
//	svc := painpointcache.New(repo, painpointcache.WithLogger(logger))
//	if !svc.AddOrUpdate(ctx, classID, "alice", true) {
//		// tell the user to check whether the database is running
//	}
//	rec, ok := svc.GetByID(ctx, true, painpoint.DeriveRecordID(classID, "alice"))
//
// AddOrUpdate checks for an existing record against the snapshot, which is
// only as fresh as the last full refresh. Writes made by other processes
// after that refresh are not seen until ListAll is forced.
package painpointcache
