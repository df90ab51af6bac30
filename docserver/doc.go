// Package docserver serves every page of an openapi.Registry over HTTP.
//
// A Server exposes a JSON index of pages under Config.BasePath and, per
// page, the interactive docs plus the JSON and YAML documents. Documents
// carry an ETag and are answered with 304 when the client already holds
// the current encoding. Responses are gzipped when the client accepts it.
//
//	reg := openapi.NewRegistry()
//	cfg, err := docserver.LoadConfig()
//	if err != nil {
//		return err
//	}
//	srv := docserver.New(reg, cfg, docserver.WithLogger(logger))
//	return srv.Run(ctx)
package docserver
