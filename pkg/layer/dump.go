package layer

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"time"
)

// Dump writes one line per cached layer whose key matches filter, in key
// order. A nil filter matches every key. The cache is snapshotted first so
// that writing never blocks builds; a snapshot failure is returned as a
// *SnapshotError before anything is written.
//
// Line format:
//
//	layer size=<bytes> etag=<etag> built=<rfc3339> expires=<rfc3339|never> modules=<n> key=<key>
func (c *LayerCache) Dump(w io.Writer, filter *regexp.Regexp) error {
	snap, err := c.snapshot()
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for _, key := range snap.Keys() {
		if filter != nil && !filter.MatchString(key) {
			continue
		}
		l, ok := snap.Get(key)
		if !ok {
			continue
		}

		expires := "never"
		if !l.Expires().IsZero() {
			expires = l.Expires().UTC().Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(bw, "layer size=%d etag=%s built=%s expires=%s modules=%d key=%s\n",
			l.Size(), l.ETag(), l.BuiltAt().UTC().Format(time.RFC3339), expires, len(l.meta.Modules), key); err != nil {
			return fmt.Errorf("dump layer cache: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("dump layer cache: %w", err)
	}
	return nil
}
