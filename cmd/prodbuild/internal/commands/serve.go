package commands

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpmiddleware "github.com/wolfeidau/prodbuild/internal/http"
	"github.com/wolfeidau/prodbuild/internal/logger"
)

type ServeCmd struct {
	Dir         string        `help:"build output directory to serve" default:"dist" type:"existingdir"`
	Listen      string        `help:"HTTP listen address" default:"localhost:8080" env:"PRODBUILD_LISTEN"`
	PublicPath  string        `help:"public path the assets were built with" default:"/"`
	CORSOrigins []string      `help:"allowed CORS origins for asset requests" env:"PRODBUILD_CORS_ORIGINS"`
	MaxAge      time.Duration `help:"cache lifetime of hashed assets" default:"8760h"`
	Tracing     bool          `help:"enable tracing" default:"false" env:"PRODBUILD_TRACING"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := setupTracing(ctx, c.Tracing, globals)
	defer shutdown()

	handler, err := c.handler(log)
	if err != nil {
		return err
	}
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "prodbuild.serve")
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Str("dir", c.Dir).Str("public_path", c.PublicPath).Msg("Serving build output")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handler serves the output directory under the public path. Precompressed
// siblings written by the compress stage are preferred, everything else is
// compressed on the fly.
func (c *ServeCmd) handler(log zerolog.Logger) (http.Handler, error) {
	prefix := "/" + strings.Trim(c.PublicPath, "/")
	if strings.Contains(c.PublicPath, "://") {
		return nil, fmt.Errorf("public path %q is an absolute URL, serve only handles path prefixes", c.PublicPath)
	}

	mux := http.NewServeMux()
	files := precompressed(c.Dir, http.FileServer(http.Dir(c.Dir)))
	files = httpmiddleware.CacheControl(c.MaxAge)(files)

	if prefix == "/" {
		mux.Handle("/", files)
	} else {
		mux.Handle(prefix+"/", http.StripPrefix(prefix, files))
		mux.Handle("/", http.RedirectHandler(prefix+"/", http.StatusFound))
	}

	var handler http.Handler = gzhttp.GzipHandler(mux)
	if len(c.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: c.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(handler)
	}

	handler = httpmiddleware.RequestLogger(log)(handler)
	handler = httpmiddleware.ClientIPMiddleware()(handler)

	return handler, nil
}

var encodings = []struct {
	name   string
	suffix string
}{
	{"zstd", ".zst"},
	{"gzip", ".gz"},
}

// precompressed serves name.zst or name.gz in place of name when the client
// accepts the encoding and the sibling exists.
func precompressed(dir string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		accept := r.Header.Get("Accept-Encoding")

		for _, enc := range encodings {
			if !acceptsEncoding(accept, enc.name) {
				continue
			}
			file := filepath.Join(dir, filepath.FromSlash(name)+enc.suffix)
			info, err := os.Stat(file)
			if err != nil || info.IsDir() {
				continue
			}

			if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
				w.Header().Set("Content-Type", ct)
			}
			w.Header().Set("Content-Encoding", enc.name)
			w.Header().Add("Vary", "Accept-Encoding")
			http.ServeFile(w, r, file)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// acceptsEncoding reports whether an Accept-Encoding header allows name. A
// q value of zero refuses the coding, an explicit entry overrides "*".
func acceptsEncoding(header, name string) bool {
	wildcard := false
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(part, ";")
		coding = strings.TrimSpace(coding)

		q := 1.0
		for _, param := range strings.Split(params, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "q") {
				continue
			}
			parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				q = 0
				break
			}
			q = parsed
		}

		switch {
		case strings.EqualFold(coding, name):
			return q > 0
		case coding == "*":
			wildcard = q > 0
		}
	}
	return wildcard
}
