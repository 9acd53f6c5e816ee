// Package inbox imports snapshot files dropped into a watched directory.
//
// A Watcher listens on the inbox with fsnotify. Every .xlsx workbook or
// .json/.yaml dump that appears is debounced until writes stop, imported
// as a full replace and then moved to the processed directory. Files that
// fail to import are moved too, with a .failed suffix, so they are not
// retried.
//
//	w, err := inbox.New(engine, inbox.Config{Dir: "inbox"})
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx)
package inbox
