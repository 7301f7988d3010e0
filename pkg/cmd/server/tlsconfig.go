package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/config"
	"github.com/mpapenbr/nebula-racers-go/pkg/utils/certs/traefik"
)

// CertSource names the files the server certificate is read from. A traefik
// acme file takes precedence over a key pair.
type CertSource struct {
	CertFile      string
	KeyFile       string
	CAFile        string
	TraefikFile   string
	TraefikDomain string
}

func certSourceFromConfig() CertSource {
	return CertSource{
		CertFile:      config.TLSCertFile,
		KeyFile:       config.TLSKeyFile,
		CAFile:        config.TLSCAFile,
		TraefikFile:   config.TraefikCerts,
		TraefikDomain: config.TraefikCertDomain,
	}
}

func (s CertSource) watched() []string {
	ret := []string{}
	if s.TraefikFile != "" && s.TraefikDomain != "" {
		return append(ret, s.TraefikFile)
	}
	if s.CertFile != "" {
		ret = append(ret, s.CertFile)
	}
	if s.KeyFile != "" {
		ret = append(ret, s.KeyFile)
	}
	return ret
}

type certs struct {
	ctx  context.Context
	src  CertSource
	log  *log.Logger
	cert *tls.Certificate
	mu   sync.RWMutex
}

// NewTLSConfigProvider returns a tls config for the configured certificate
// or nil if none could be loaded.
func NewTLSConfigProvider(ctx context.Context) *tls.Config {
	return NewTLSConfig(ctx, certSourceFromConfig())
}

// NewTLSConfig loads the certificate of src and reloads it whenever one of
// its files changes until ctx is done.
func NewTLSConfig(ctx context.Context, src CertSource) *tls.Config {
	c := &certs{
		ctx: ctx,
		src: src,
		log: log.GetFromContext(ctx).Named("server.certs"),
	}
	c.loadCert()
	if c.current() == nil {
		return nil
	}
	ret := &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return c.current(), nil
		},
		MinVersion: tls.VersionTLS13,
	}
	if src.CAFile != "" {
		c.log.Info("Loading ca cert", log.String("file", src.CAFile))
		if pool := c.loadCA(); pool != nil {
			ret.ClientCAs = pool
			ret.ClientAuth = tls.VerifyClientCertIfGiven
		}
	}
	go c.watchAndReloadCerts()
	return ret
}

func (c *certs) current() *tls.Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cert
}

func (c *certs) loadCA() *x509.CertPool {
	caCert, err := os.ReadFile(c.src.CAFile)
	if err != nil {
		c.log.Error("could not read TLS root CA", log.ErrorField(err))
		return nil
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caCert); !ok {
		c.log.Error("could not append cert to pool")
		return nil
	}
	return pool
}

func (c *certs) watchAndReloadCerts() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Error("could not create fsnotify watcher", log.ErrorField(err))
		return
	}
	defer watcher.Close()
	for _, file := range c.src.watched() {
		if err := watcher.Add(file); err != nil {
			c.log.Error("could not watch file", log.String("file", file), log.ErrorField(err))
		}
	}
	for {
		select {
		case <-c.ctx.Done():
			c.log.Info("context done, stopping cert reload")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				c.log.Info("watcher events channel closed, stopping cert reload")
				return
			}
			c.log.Debug("change detected",
				log.String("file", event.Name), log.Any("event", event))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) ||
				event.Has(fsnotify.Create) {

				c.log.Info("cert file changed, reloading cert",
					log.String("file", event.Name))
				c.loadCert()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				c.log.Info("watcher errors channel closed, stopping cert reload")
				return
			}
			c.log.Error("watcher error", log.ErrorField(err))
		}
	}
}

// loadCert keeps the previous certificate if the new one cannot be read.
func (c *certs) loadCert() {
	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case c.src.TraefikFile != "" && c.src.TraefikDomain != "":
		c.log.Info("Looking up traefik certs",
			log.String("file", c.src.TraefikFile),
			log.String("domain", c.src.TraefikDomain))
		cert, err = traefik.GetCertFromTraefik(c.src.TraefikFile, c.src.TraefikDomain)
	case c.src.CertFile != "" && c.src.KeyFile != "":
		c.log.Info("Loading cert",
			log.String("key", c.src.KeyFile),
			log.String("cert", c.src.CertFile))
		cert, err = tls.LoadX509KeyPair(c.src.CertFile, c.src.KeyFile)
	default:
		return
	}
	if err != nil {
		c.log.Error("could not load certificate", log.ErrorField(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
}
