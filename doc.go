// Package soundbank keeps a flat directory of audio clips and its decoded
// in-memory index in step with a remote manifest of content-addressed records.
//
// A Bank owns one cache directory. Synchronize fetches the manifest, diffs it
// against the local index by name and content hash, downloads new or changed
// clips and evicts the ones the manifest no longer lists. When the manifest
// cannot be fetched and a git mirror is configured, the directory is cloned or
// pulled from the mirror instead and reloaded as a whole.
//
// Long-running work happens in the background. Its results are applied to the
// index only from Poll, which the caller drives from its own tick loop:
//
//	bank, _ := soundbank.Open(dir,
//	    soundbank.WithManifestURL("https://bugle.example.com/api"),
//	    soundbank.WithGitMirror("https://example.com/bugle-sounds.git"),
//	)
//	defer bank.Close()
//
//	bank.RefreshIndex(ctx)
//	for range ticker.C {
//	    bank.Poll()
//	}
//
//	// elsewhere, once in a while
//	if task := bank.Synchronize(ctx); task == nil {
//	    // a refresh or sync is already running
//	}
//
// Blocking callers can use Sync and Refresh, which start the work, wait for it
// and apply the result:
//
//	report, err := bank.Sync(ctx)
//	fmt.Println(report)
//
//	asset, ok := bank.Get("horn")
//	for _, name := range bank.Names() { ... }
//	bank.Evict("horn", true)
package soundbank
