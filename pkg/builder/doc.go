// Package builder produces module output for layers.
//
// FileBuilder serves modules from an fs.FS, HasResolver expands has!
// expressions in required lists, and Batch builds many modules in parallel
// with a bounded worker pool.
//
// # Usage
//
//	fb := builder.NewFileBuilder(os.DirFS("web"), logging.NewLogger("modules"))
//	batch := builder.NewBatch(builder.DefaultBatchConfig())
//	out, err := batch.BuildAll(ctx, req.Modules(), func(ctx context.Context, mid string) (string, error) {
//		return fb.BuildModule(ctx, req, mid)
//	})
package builder
