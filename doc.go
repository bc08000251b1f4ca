// Package hashstore provides content-addressable storage for files and
// directory trees: content is named by cryptographic digest, cached locally,
// and optionally synchronized with a remote blob database.
//
// Files are addressed as "sha1://<digest>" (or "md5://..."), directories as
// "sha1dir://<digest>". A directory address may carry a relative path after a
// dot to reach into the tree without resolving more manifests than needed:
//
//	sha1dir://2c8b...f1.data/raw/trial1.dat
//
// Basic usage (local cache only):
//
//	st, _ := hashstore.New(hashstore.WithCacheDir("/var/cache/hashstore"))
//
//	addr, _ := st.StoreFile(ctx, "results.dat")
//	fmt.Println(addr) // sha1://...
//
//	path, _ := st.LoadFile(ctx, addr.String(), "")
//	data, _ := st.LoadBytes(ctx, addr.String(), hashstore.WithStart(0), hashstore.WithEnd(100))
//
// Directory trees:
//
//	addr, _ := st.StoreDir(ctx, "./dataset", "dataset")
//	dirs, files, _ := st.ListDir(ctx, addr.String())
//
// With a remote database:
//
//	st, _ := hashstore.New(
//	    hashstore.WithRemote("https://hashdb.example.org", "public", password),
//	    hashstore.WithUseRemote(true),
//	)
package hashstore
