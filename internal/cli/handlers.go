package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/BartekS5/ida/internal/config"
	"github.com/BartekS5/ida/internal/etl"
	"github.com/BartekS5/ida/pkg/database"
	"github.com/BartekS5/ida/pkg/logger"
	"github.com/BartekS5/ida/pkg/models"
)

// app holds the connections of one command invocation.
type app struct {
	cfg     *config.Config
	mapping *models.SourceMapping
	db      *sqlx.DB
	mongo   *mongo.Client
	store   *etl.SQLStore
	engine  *etl.Engine
}

// openApp loads the configuration and connects to the target, and to the
// legacy source when withSource is set.
func openApp(withSource bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	if err := logger.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("open log file: %w", err))
	}

	mapping, err := config.LoadMapping(cfg.MappingFile, cfg.MongoDatabase)
	if err != nil {
		return nil, withCode(exitValidation, err)
	}

	a := &app{cfg: cfg, mapping: mapping}
	if a.db, err = database.ConnectSQL(cfg.SQLDriver, cfg.SQLConnString); err != nil {
		a.close()
		return nil, withCode(exitDB, err)
	}
	a.store = etl.NewSQLStore(a.db)

	var reader etl.SourceReader
	if withSource {
		if a.mongo, err = database.ConnectMongo(cfg.MongoConnString); err != nil {
			a.close()
			return nil, withCode(exitDB, err)
		}
		reader = etl.NewMongoReader(a.mongo, mapping)
	}
	a.engine = etl.NewEngine(reader, a.store, mapping)
	return a, nil
}

func (a *app) close() {
	if a.mongo != nil {
		if err := database.DisconnectMongo(a.mongo); err != nil {
			logger.Warnf("Disconnecting from MongoDB: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	logger.Close()
}

// itemFormulas loads the formula view of a company's items.
func (a *app) itemFormulas(ctx context.Context, companyID string) ([]models.ItemFormula, error) {
	var rows []models.ItemFormula
	err := a.store.Transactional(ctx, func(tx etl.TargetTx) error {
		var err error
		rows, err = tx.ItemFormulas(ctx, companyID)
		return err
	})
	if err != nil {
		return nil, withCode(exitDB, err)
	}
	return rows, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}
