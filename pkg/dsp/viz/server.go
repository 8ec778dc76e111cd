package viz

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// viewTimeout stops rendering a bucket nobody has looked at recently.
const viewTimeout = 5 * time.Second

type ImageContainer struct {
	name string
	data []byte
}

func (i *ImageContainer) Name() string { return i.name }
func (i *ImageContainer) Data() []byte { return i.data }

type Producer interface {
	Name() string
	GetImage() *ImageContainer
	AddPlotOption(opt PlotOptions)
}

type Server struct {
	images          map[string]map[string]*ImageContainer
	mu              sync.RWMutex
	srv             *http.Server
	producerBuckets map[string]map[string]Producer
	updateInterval  time.Duration
	enabled         bool
	lastViewed      map[string]time.Time
	logger          zerolog.Logger
}

func NewServer(port int, updateInterval time.Duration) *Server {
	return &Server{
		images:          make(map[string]map[string]*ImageContainer),
		producerBuckets: make(map[string]map[string]Producer),
		lastViewed:      make(map[string]time.Time),
		srv:             &http.Server{Addr: fmt.Sprintf(":%d", port)},
		updateInterval:  updateInterval,
		enabled:         true,
		logger:          log.Logger,
	}
}

func (s *Server) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

func (s *Server) Enable(enable bool) {
	s.mu.Lock()
	s.enabled = enable
	s.mu.Unlock()
}

func (s *Server) Register(key string, p Producer) {
	s.mu.Lock()
	bucket, ok := s.producerBuckets[key]
	if !ok {
		bucket = make(map[string]Producer)
		s.producerBuckets[key] = bucket
	}
	bucket[p.Name()] = p
	s.mu.Unlock()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// refresh renders every producer in the buckets viewed since the given
// time.
func (s *Server) refresh(since time.Time) {
	s.mu.RLock()
	if !s.enabled {
		s.mu.RUnlock()
		return
	}
	var work []struct {
		bucket string
		p      Producer
	}
	for bucketName, bucket := range s.producerBuckets {
		if s.lastViewed[bucketName].Before(since) {
			continue
		}
		for _, p := range bucket {
			work = append(work, struct {
				bucket string
				p      Producer
			}{bucketName, p})
		}
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, w := range work {
		wg.Add(1)
		go func(bucket string, p Producer) {
			defer wg.Done()

			img := p.GetImage()
			if img == nil {
				return
			}

			s.mu.Lock()
			mb, ok := s.images[bucket]
			if !ok {
				mb = make(map[string]*ImageContainer)
				s.images[bucket] = mb
			}
			mb[img.name] = img
			s.mu.Unlock()
		}(w.bucket, w.p)
	}
	wg.Wait()
}

func (s *Server) markViewed(bucket string) {
	s.mu.Lock()
	s.lastViewed[bucket] = time.Now()
	s.mu.Unlock()
}

var viewTemplate = template.Must(template.New("view").Parse(`<html><head><title>Spectrum Sensor</title></head>
<script type="text/javascript">
	var toggleRefresh = true;
	function toggleOn() {
		toggleRefresh = !toggleRefresh;
	}
	function changeBucket() {
		var val = document.getElementById('bucketSelector').value;
		window.location.href = '/view/' + val;
	}
	window.onload = function() {
		var imgs = document.getElementsByTagName('img');
		for (var i = 0; i < imgs.length; i++) {
			setInterval(function(image) {
				if (toggleRefresh) {
					image.src = image.src.split("?")[0] + "?" + new Date().getTime();
				}
			}, {{.IntervalMs}}, imgs[i]);
		}
	}
</script>
<body style='background-color: black'>
<select id="bucketSelector" onchange="changeBucket()">
{{range .Buckets}}<option value="{{.}}"{{if eq . $.Bucket}} selected{{end}}>{{.}}</option>
{{end}}</select>
<button onclick="toggleOn()">Refresh?</button>
<div style="display: flex; flex-direction: row; flex-wrap: wrap">
{{range .Images}}<div><img src="/img/{{$.Bucket}}/{{.}}?{{$.Now}}" /></div>
{{end}}</div>
</body></html>
`))

type viewPage struct {
	Bucket     string
	Buckets    []string
	Images     []string
	IntervalMs int64
	Now        int64
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		keys := make([]string, 0, len(s.producerBuckets))
		for name := range s.producerBuckets {
			keys = append(keys, name)
		}
		s.mu.RUnlock()

		if len(keys) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		sort.Strings(keys)

		w.Header().Set("Location", "/view/"+url.PathEscape(keys[0]))
		w.WriteHeader(http.StatusFound)
	})

	handler.GET("/view/:bucket", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		bucket := params.ByName("bucket")

		s.mu.RLock()
		itemsForBucket, ok := s.producerBuckets[bucket]
		page := viewPage{
			Bucket:     bucket,
			IntervalMs: s.updateInterval.Milliseconds(),
			Now:        time.Now().UnixMicro(),
		}
		for key := range s.producerBuckets {
			page.Buckets = append(page.Buckets, key)
		}
		for key := range itemsForBucket {
			page.Images = append(page.Images, key)
		}
		s.mu.RUnlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.markViewed(bucket)

		sort.Strings(page.Buckets)
		sort.Strings(page.Images)

		w.Header().Add("Content-Type", "text/html")
		if err := viewTemplate.Execute(w, page); err != nil {
			s.logger.Warn().Err(err).Str("bucket", bucket).Msg("error rendering view")
		}
	})

	handler.GET("/img/:bucket/:img", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		bucketName := params.ByName("bucket")
		s.markViewed(bucketName)

		s.mu.RLock()
		img, ok := s.images[bucketName][params.ByName("img")]
		s.mu.RUnlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Add("Content-Type", "image/png")
		w.Write(img.data)
	})

	return handler
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refresh(time.Now().Add(-viewTimeout))
			}
		}
	}()

	s.srv.Handler = s.Handler()
	s.logger.Info().Str("addr", s.srv.Addr).Msg("starting viz server")

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
