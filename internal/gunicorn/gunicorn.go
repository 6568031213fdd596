// Package gunicorn renders the application server configuration.
package gunicorn

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"text/template"
)

// Settings are the values that vary between deployments. Everything else
// in the rendered file is fixed.
type Settings struct {
	AppName string
	Bind    string
	Workers int // 0 = cpu_count() * 2 + 1, evaluated by gunicorn at start
	LogDir  string
	User    string
	Group   string
}

// PidFile returns the pidfile path under the unit's runtime directory.
func (s Settings) PidFile() string {
	return filepath.Join("/run/gunicorn", s.AppName+".pid")
}

var confTemplate = template.Must(template.New("gunicorn").Funcs(template.FuncMap{
	"py": strconv.Quote,
}).Parse(`# Generated by medshop-deploy.
import multiprocessing

# Server socket
bind = {{ py .Bind }}
backlog = 2048

# Worker processes
workers = {{ .Workers }}
worker_class = "sync"
worker_connections = 1000
timeout = 30
keepalive = 2

# Logging
accesslog = {{ py .AccessLog }}
errorlog = {{ py .ErrorLog }}
loglevel = "info"

# Process naming
proc_name = {{ py .AppName }}

# Server mechanics
daemon = False
pidfile = {{ py .PidFile }}
user = {{ py .User }}
group = {{ py .Group }}
tmp_upload_dir = None
`))

// Render produces gunicorn.conf.py.
func Render(s Settings) ([]byte, error) {
	workers := "multiprocessing.cpu_count() * 2 + 1"
	if s.Workers > 0 {
		workers = strconv.Itoa(s.Workers)
	}

	var buf bytes.Buffer
	err := confTemplate.Execute(&buf, map[string]string{
		"Bind":      s.Bind,
		"Workers":   workers,
		"AccessLog": filepath.Join(s.LogDir, "access.log"),
		"ErrorLog":  filepath.Join(s.LogDir, "error.log"),
		"AppName":   s.AppName,
		"PidFile":   s.PidFile(),
		"User":      s.User,
		"Group":     s.Group,
	})
	if err != nil {
		return nil, fmt.Errorf("render gunicorn config: %w", err)
	}
	return buf.Bytes(), nil
}
