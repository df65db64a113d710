// Package all wires every built-in sink into the storage factory.
//
// Importing it (as a blank import) runs the init functions of each backend,
// which register their factories with the storage package:
//
//   - "parquet"  (bindingetl/internal/storage/parquet)
//   - "sqlite"   (bindingetl/internal/storage/sqlite)
//   - "postgres" (bindingetl/internal/storage/postgres)
//
// Typical usage:
//
//	import _ "bindingetl/internal/storage/all"
//
//	sink, err := storage.New(ctx, storage.Config{Kind: "parquet", Path: "brick/data.parquet"})
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
package all

import (
	_ "bindingetl/internal/storage/parquet"
	_ "bindingetl/internal/storage/postgres"
	_ "bindingetl/internal/storage/sqlite"
)
