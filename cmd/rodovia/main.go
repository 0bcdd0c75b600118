package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lfarias/rodovia/internal/api"
	"github.com/lfarias/rodovia/internal/heatmap"
	"github.com/lfarias/rodovia/internal/ingest"
	"github.com/lfarias/rodovia/internal/metrics"
	"github.com/lfarias/rodovia/internal/models"
	"github.com/lfarias/rodovia/internal/predictor"
	"github.com/lfarias/rodovia/internal/store"
)

type Globals struct {
	DB       string `help:"Path to the SQLite database." env:"RODOVIA_DB" default:"data/rodovia.db"`
	Artifact string `help:"Path to the trained model artifact." env:"RODOVIA_ARTIFACT" default:"data/model.json"`
}

type CLI struct {
	Globals

	Ingest  IngestCmd  `cmd:"" help:"Load DATATRAN records into the store."`
	Train   TrainCmd   `cmd:"" help:"Aggregate the stored records, train the model and save the artifact."`
	Predict PredictCmd `cmd:"" help:"Predict the incident count for one day."`
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API server."`
	Heatmap HeatmapCmd `cmd:"" help:"Render the municipality heatmap to a PNG file."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("rodovia"),
		kong.Description("Daily traffic accident forecasting for Brazilian federal highways."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		log.Fatalf("%s: %v", ctx.Command(), err)
	}
}

func openStore(path string) (*store.Store, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, db, nil
}

type IngestCmd struct {
	File    string `arg:"" optional:"" help:"Path to a DATATRAN JSON export." type:"path"`
	URL     string `help:"HTTP URL of an export." xor:"source"`
	FTPHost string `help:"FTP mirror host (host:port)." env:"RODOVIA_FTP_HOST"`
	FTPPath string `help:"Path of the export on the FTP mirror." xor:"source"`
}

func (c *IngestCmd) Run(g *Globals) error {
	var (
		records []models.IncidentRecord
		source  string
		err     error
	)
	switch {
	case c.File != "":
		records, err = ingest.LoadFile(c.File)
		source = "file"
	case c.URL != "":
		records, err = ingest.NewFetcher(nil).Fetch(c.URL)
		source = "http"
	case c.FTPPath != "":
		records, err = ingest.NewMirror(c.FTPHost).Fetch(c.FTPPath)
		source = "ftp"
	default:
		return fmt.Errorf("one of a file argument, --url or --ftp-path is required")
	}
	if err != nil {
		return err
	}

	st, db, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	inserted, err := ingest.NewImporter(st).Import(records, source)
	if err != nil {
		return err
	}
	log.Printf("ingest complete: %d new of %d records", inserted, len(records))
	return nil
}

type TrainCmd struct {
	File string `help:"Train from a JSON export directly instead of the stored records." type:"path"`
}

func (c *TrainCmd) Run(g *Globals) error {
	st, db, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	var records []models.IncidentRecord
	if c.File != "" {
		records, err = ingest.LoadFile(c.File)
		if err != nil {
			return err
		}
		if _, err := ingest.NewImporter(st).Import(records, "file"); err != nil {
			return err
		}
	} else {
		records, err = st.GetIncidents()
		if err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return fmt.Errorf("no records to train on, run ingest first")
	}

	pred := predictor.New()
	start := time.Now()
	m, drops, err := pred.Train(records)
	if err != nil {
		return err
	}
	metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	metrics.RecordsDropped.WithLabelValues("missing_field").Add(float64(drops.MissingField))
	metrics.RecordsDropped.WithLabelValues("bad_date").Add(float64(drops.BadDate))
	metrics.RecordsDropped.WithLabelValues("bad_time").Add(float64(drops.BadTime))
	metrics.RecordsDropped.WithLabelValues("before_min_year").Add(float64(drops.BeforeMinYear))
	metrics.ModelTestR2.Set(m.R2Test)
	metrics.SeriesDays.Set(float64(len(pred.History())))

	if err := st.ReplaceDailySeries(pred.History()); err != nil {
		return fmt.Errorf("store daily series: %w", err)
	}
	if err := pred.Save(g.Artifact); err != nil {
		return err
	}

	log.Printf("trained on %d days (%d dropped records)", len(pred.History()), drops.Total())
	log.Printf("train: R2 %.4f RMSE %.4f (%d rows)", m.R2Train, m.RMSETrain, m.TrainRows)
	log.Printf("test:  R2 %.4f RMSE %.4f (%d rows)", m.R2Test, m.RMSETest, m.TestRows)
	log.Printf("artifact saved to %s", g.Artifact)
	return nil
}

type PredictCmd struct {
	Date         string  `help:"Target date (DD/MM/YYYY). Defaults to the day after the last trained day."`
	UF           string  `required:"" help:"State code, e.g. PE."`
	Municipality string  `required:"" help:"Municipality name."`
	Type         string  `help:"Accident type. Defaults to the most common trained class."`
	Weather      string  `default:"Céu Claro" help:"Weather condition text."`
	MeanHour     float64 `default:"12" help:"Expected mean hour of day."`
}

func (c *PredictCmd) Run(g *Globals) error {
	pred, err := predictor.Load(g.Artifact)
	if err != nil {
		return err
	}

	date := c.Date
	if date == "" {
		date = pred.NextDate().Format(models.DateLayout)
	}

	preds, err := pred.Predict([]models.PredictionInput{{
		Date:         date,
		UF:           c.UF,
		Municipality: c.Municipality,
		AccidentType: c.Type,
		Weather:      c.Weather,
		MeanHour:     c.MeanHour,
	}})
	if err != nil {
		return err
	}
	predicted := preds[0]

	log.Printf("%s %s (%s): %d incidents predicted", date, c.Municipality, c.UF, predicted)
	if mean, ok := pred.MunicipalityMean(c.Municipality); ok && mean > 0 {
		log.Printf("municipality mean %.2f, deviation %+.1f%%", mean, (float64(predicted)-mean)/mean*100)
	}
	if global := pred.GlobalMean(); global > 0 {
		log.Printf("global mean %.2f, deviation %+.1f%%", global, (float64(predicted)-global)/global*100)
	}

	st, db, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	target, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return fmt.Errorf("parse target date %q: %w", date, err)
	}
	return st.InsertPredictionLog(models.PredictionLog{
		RequestedAt:  time.Now().UTC(),
		TargetDate:   target,
		UF:           c.UF,
		Municipality: c.Municipality,
		AccidentType: c.Type,
		WeatherClass: "",
		Predicted:    predicted,
	})
}

type ServeCmd struct {
	Port string `default:"8080" env:"RODOVIA_PORT" help:"HTTP server port."`
}

func (c *ServeCmd) Run(g *Globals) error {
	st, db, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	var pred *predictor.Predictor
	if _, statErr := os.Stat(g.Artifact); os.IsNotExist(statErr) {
		log.Printf("no artifact at %s, serving untrained (run train first)", g.Artifact)
		pred = predictor.New()
	} else {
		pred, err = predictor.Load(g.Artifact)
		if err != nil {
			return err
		}
		metrics.ModelTestR2.Set(pred.Metrics().R2Test)
		metrics.SeriesDays.Set(float64(len(pred.History())))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("serving on :%s", c.Port)
	return api.NewServer(st, pred, c.Port).Run(ctx)
}

type HeatmapCmd struct {
	Out    string `default:"heatmap.png" help:"Output PNG path." type:"path"`
	Width  int    `default:"800" help:"Image width in pixels."`
	Height int    `default:"800" help:"Image height in pixels."`
}

func (c *HeatmapCmd) Run(g *Globals) error {
	st, db, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := st.MunicipalityCounts(0)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return fmt.Errorf("no incidents in store, run ingest first")
	}

	f, err := os.Create(c.Out)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Out, err)
	}
	defer f.Close()

	if err := heatmap.RenderPNG(f, heatmap.BuildPoints(counts), c.Width, c.Height); err != nil {
		return err
	}
	log.Printf("heatmap written to %s (%d municipalities)", c.Out, len(counts))
	return nil
}
