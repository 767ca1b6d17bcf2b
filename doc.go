// Package webservo implements a small web server that delivers static files and runs per-request script
// modules.
//
// # Overview
//
// Every request walks the same pipeline:
//
//  1. The request target is resolved to a file below the document root. A path that names a directory
//     gets the default document appended, and ".." segments can never leave the root (see [Resolve]).
//  2. Query string parameters are parsed. For POST requests the body is decoded as well
//     (multipart/form-data or application/x-www-form-urlencoded) and body fields shadow query fields of
//     the same name. Uploaded files are streamed to the upload directory.
//  3. A file whose extension matches the script extension is loaded fresh from disk by a [script.Engine]
//     and invoked. Every other file is transferred as is, with a content type derived from its extension.
//  4. Exactly one of three responses is emitted: 200 with the content, "404 Not found" or
//     "500 Server error". Each one produces one access record and failures produce one error record.
//
// A minimal example:
//
//	srv, err := webservo.New(webservo.Config{
//	    Root:            "www",
//	    DefaultDocument: "index.html",
//	    ScriptExtension: "xjs",
//	}, jsengine.New(), sink)
//	if err != nil {
//	    return err
//	}
//
//	http.ListenAndServe(":8080", srv)
//
// # Buffered Response Writer
//
// Scripts receive a response they may write to directly. All writes are held in memory until the pipeline
// has decided on the outcome, so a script that writes and then fails never leaks partial output: the
// buffer is reset and replaced by the 500 response. [ResponseWriter.Reset] discards what was written,
// [ResponseWriter.FlushBuffer] sends it. With a positive buffer limit, writes past the limit fail with
// [ErrBufferFull].
//
// # Errors
//
// Pipeline units report failures as [*Error] values carrying a [Code] and the filesystem path they
// concerned. [StatusOf] maps any error to the status that is emitted: 404 for [CodeNotFound] and 500 for
// everything else, including panics.
//
// # Middleware
//
// [Middleware] wraps the dispatch [Handler], after the request has been accepted and before the canonical
// response is emitted. It can observe the [Reply] or the error and replace either:
//
//	func timing(next webservo.Handler) webservo.Handler {
//	    return webservo.HandlerFunc(func(ctx context.Context, w webservo.ResponseWriter, r *http.Request) (webservo.Reply, error) {
//	        start := time.Now()
//	        reply, err := next.ServeServo(ctx, w, r)
//	        log.Printf("%s took %v", r.URL.Path, time.Since(start))
//	        return reply, err
//	    })
//	}
//
//	srv, err := webservo.New(cfg, engine, sink, webservo.WithMiddleware(timing))
//
// # Logging
//
// Access and error records go to a [LogSink], usually the one from the logsink package. Failures of the
// server's own machinery, such as a flush that could not complete, are reported to a [Logger].
package webservo
