package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Baltuneedu/pdf-compress-app/cmd/migrate"
	"github.com/Baltuneedu/pdf-compress-app/internal/blob"
	"github.com/Baltuneedu/pdf-compress-app/internal/cache"
	"github.com/Baltuneedu/pdf-compress-app/internal/config"
	"github.com/Baltuneedu/pdf-compress-app/internal/dispatch"
	"github.com/Baltuneedu/pdf-compress-app/internal/redisholder"
	"github.com/Baltuneedu/pdf-compress-app/internal/redismanager"
	"github.com/Baltuneedu/pdf-compress-app/internal/repository/storage"
	"github.com/Baltuneedu/pdf-compress-app/internal/transport/handler"
	"github.com/Baltuneedu/pdf-compress-app/internal/transport/router"
	use_case "github.com/Baltuneedu/pdf-compress-app/internal/use-case"
)

type App struct {
	HttpServer *http.Server
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations)
	if err != nil {
		return nil, err
	}

	holder, err := redisholder.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rc := holder.Get()
	jobCache := cache.NewCache("pdfcompress:jobs", rc)
	links := redismanager.NewManager(rc)

	repo, err := storage.New(ctx, cfg.Database.DSN, jobCache)
	if err != nil {
		return nil, err
	}

	blobStorage, err := blob.NewStorage(&cfg.Blob)
	if err != nil {
		return nil, err
	}

	worker := dispatch.NewClient(cfg.Worker.URL, cfg.Worker.Token, cfg.WorkerTimeout())

	uc := use_case.New(repo, worker, blobStorage, links, cfg)

	h := handler.New(uc, cfg)
	r := router.NewRouter(h)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{
		HttpServer: s,
	}, nil
}

func (a *App) Run() error {
	log.Printf("starting server")
	return a.HttpServer.ListenAndServe()
}
