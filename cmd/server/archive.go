package main

import (
	"context"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/config"
	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/repository/memory"
	"github.com/Rrens/bloombuddy/internal/repository/mongo"
	"github.com/Rrens/bloombuddy/internal/repository/mysql"
	"github.com/Rrens/bloombuddy/internal/repository/postgres"
	"github.com/rs/zerolog/log"
)

// archive is the storage selected by archive.driver
type archive struct {
	Conversations domain.ConversationRepository
	Users         domain.UserRepository

	ping  func(ctx context.Context) error
	close func()
}

func (a *archive) Ping(ctx context.Context) error {
	return a.ping(ctx)
}

func (a *archive) Close() {
	if a.close != nil {
		a.close()
	}
}

func openArchive(ctx context.Context, cfg *config.Config) (*archive, error) {
	switch cfg.Archive.Driver {
	case config.ArchivePostgres, "":
		if cfg.Archive.AutoMigrate {
			if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Archive.Migrations); err != nil {
				return nil, err
			}
		}
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &archive{
			Conversations: postgres.NewConversationRepository(db.Pool),
			Users:         postgres.NewUserRepository(db.Pool),
			ping:          db.Ping,
			close:         db.Close,
		}, nil

	case config.ArchiveMongo:
		db, err := mongo.NewDB(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return &archive{
			Conversations: mongo.NewConversationRepository(db),
			Users:         mongo.NewUserRepository(db),
			ping:          db.Ping,
			close: func() {
				if err := db.Close(); err != nil {
					log.Error().Err(err).Msg("failed to disconnect from MongoDB")
				}
			},
		}, nil

	case config.ArchiveMySQL:
		if cfg.Archive.AutoMigrate {
			if err := mysql.RunMigrations(cfg.MySQL, cfg.Archive.Migrations+"/mysql"); err != nil {
				return nil, err
			}
		}
		db, err := mysql.NewDB(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		return &archive{
			Conversations: mysql.NewConversationRepository(db),
			Users:         mysql.NewUserRepository(db),
			ping:          db.Ping,
			close:         func() { db.Close() },
		}, nil

	case config.ArchiveMemory:
		log.Warn().Msg("using in-memory archive, conversations are lost on restart")
		a := memory.NewArchive()
		return &archive{
			Conversations: a,
			Users:         a.Users(),
			ping:          a.Ping,
		}, nil
	}

	return nil, fmt.Errorf("unknown archive driver %q", cfg.Archive.Driver)
}
