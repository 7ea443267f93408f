package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/LdDl/nvdbseg"
	"github.com/LdDl/nvdbseg/nvdbapi"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	mode       = flag.String("mode", "segment", "What to do with base and layers. Expected values: segment / join")
	configFile = flag.String("config", "nvdbseg.yaml", "Filename of YAML job configuration")
	out        = flag.String("out", "segmented.csv", "Filename of output file")
	geomFormat = flag.String("geomf", "wkt", "Format of output. Expected values: wkt (CSV with WKT geometry) / geojson")
	logLevel   = flag.String("loglevel", "info", "Log level. Expected values: debug / info / warn / error")
)

func main() {

	flag.Parse()

	logger, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	defer logger.Sync()
	nvdbseg.SetLogger(logger)

	cfg, err := nvdbseg.LoadConfiguration(*configFile)
	if err != nil {
		logger.Error("Can't load configuration", zap.Error(err))
		return
	}

	st := time.Now()
	base, layers, err := loadDatasets(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Can't load datasets", zap.Error(err))
		return
	}
	logger.Info("Loaded datasets", zap.Int("base_records", base.Len()), zap.Int("layers", len(layers)), zap.Duration("elapsed", time.Since(st)))

	st = time.Now()
	var result *nvdbseg.Dataset
	switch strings.ToLower(*mode) {
	case "segment":
		result, err = segment(cfg, base, layers)
	case "join":
		result, err = join(cfg, base, layers)
	default:
		err = errors.Errorf("unknown mode '%s'", *mode)
	}
	if err != nil {
		logger.Error("Can't process datasets", zap.String("mode", *mode), zap.Error(err))
		return
	}
	logger.Info("Done", zap.String("mode", *mode), zap.Int("records", result.Len()), zap.Duration("elapsed", time.Since(st)))

	if strings.ToLower(*geomFormat) == "geojson" {
		err = result.ExportToGeoJSON(*out)
	} else {
		err = result.ExportToCSV(*out)
	}
	if err != nil {
		logger.Error("Can't export result", zap.String("file", *out), zap.Error(err))
		return
	}
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "Can't parse log level")
	}
	cfg := zap.NewProductionConfig()
	if atomicLevel.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = atomicLevel
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// loadDatasets reads files and fetches remote sources. Remote sources are fetched concurrently
func loadDatasets(ctx context.Context, cfg *nvdbseg.Configuration, logger *zap.Logger) (*nvdbseg.Dataset, []*nvdbseg.Dataset, error) {
	sources := make([]nvdbseg.SourceConfiguration, 0, len(cfg.Layers)+1)
	names := make([]string, 0, len(cfg.Layers)+1)
	sources = append(sources, cfg.Base)
	names = append(names, "base")
	for i := range cfg.Layers {
		sources = append(sources, cfg.Layers[i].Source)
		names = append(names, cfg.Layers[i].Name)
	}

	requests := []nvdbapi.LayerRequest{}
	remoteIdx := []int{}
	for i, src := range sources {
		if !src.IsRemote() {
			continue
		}
		requests = append(requests, nvdbapi.LayerRequest{
			Name:       names[i],
			ObjectType: src.ObjectType,
			Filter:     mergeFilters(cfg.API.Filter, src.Filter),
		})
		remoteIdx = append(remoteIdx, i)
	}
	remoteRows := map[int][]map[string]interface{}{}
	if len(requests) > 0 {
		client := nvdbapi.NewClient(
			nvdbapi.WithBaseURL(cfg.API.BaseURL),
			nvdbapi.WithClientName(cfg.API.Client),
			nvdbapi.WithPageSize(cfg.API.PageSize),
			nvdbapi.WithRateLimit(cfg.API.RateLimit),
			nvdbapi.WithLogger(logger),
		)
		logger.Debug(client.String())
		nvdbapi.LogRequests(logger, requests)
		rows, err := nvdbapi.FetchLayers(ctx, client, requests, nvdbapi.DefaultWorkers)
		if err != nil {
			return nil, nil, err
		}
		for j, i := range remoteIdx {
			remoteRows[i] = rows[j]
		}
	}

	datasets := make([]*nvdbseg.Dataset, len(sources))
	for i, src := range sources {
		var ds *nvdbseg.Dataset
		var err error
		name := names[i]
		if i > 0 && name == "" && src.ObjectType > 0 {
			name = fmt.Sprintf("%d", src.ObjectType)
		}
		if rows, ok := remoteRows[i]; ok {
			ds, err = nvdbseg.DatasetFromRows(name, nil, rows)
		} else {
			ds, err = nvdbseg.ReadCSV(src.File, name)
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Can't load dataset '%s'", name)
		}
		datasets[i] = ds
	}
	return datasets[0], datasets[1:], nil
}

func mergeFilters(common, own map[string]string) map[string]string {
	merged := make(map[string]string, len(common)+len(own))
	for k, v := range common {
		merged[k] = v
	}
	for k, v := range own {
		merged[k] = v
	}
	return merged
}

func segment(cfg *nvdbseg.Configuration, base *nvdbseg.Dataset, datasets []*nvdbseg.Dataset) (*nvdbseg.Dataset, error) {
	segmenter := cfg.NewSegmenter()
	nvdbseg.Logger().Debug(segmenter.String())
	layers := make([]nvdbseg.Layer, len(datasets))
	for i := range datasets {
		layers[i] = cfg.Layers[i].Layer(datasets[i])
	}
	return segmenter.Segment(base, layers)
}

// join joins base with every layer in configuration order: result of one join is the left side of the next
func join(cfg *nvdbseg.Configuration, base *nvdbseg.Dataset, datasets []*nvdbseg.Dataset) (*nvdbseg.Dataset, error) {
	kind, err := cfg.Join.JoinKind()
	if err != nil {
		return nil, err
	}
	current := base
	for i := range datasets {
		options := cfg.JoinOptions(&cfg.Layers[i])
		var jr *nvdbseg.JoinResult
		if kind == nvdbseg.JoinLeft {
			jr, err = nvdbseg.LeftJoin(current, datasets[i], options...)
		} else {
			jr, err = nvdbseg.InnerJoin(current, datasets[i], options...)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Can't join layer '%s'", datasets[i].Name())
		}
		current, err = jr.Dataset()
		if err != nil {
			return nil, errors.Wrapf(err, "Can't build joined dataset for layer '%s'", datasets[i].Name())
		}
		nvdbseg.Logger().Info("Joined layer", zap.String("layer", datasets[i].Name()), zap.String("prefix", jr.Prefix()), zap.Int("records", current.Len()))
	}
	return current, nil
}
