// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/aclkey/internal/acl"
	"github.com/holomush/aclkey/internal/store"
	"github.com/holomush/aclkey/pkg/errutil"
)

// setupPostgres starts a PostgreSQL container with the grant schema applied.
func setupPostgres(ctx context.Context) (*pgxpool.Pool, func(), error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("aclkey_test"),
		postgres.WithUsername("aclkey"),
		postgres.WithPassword("aclkey"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if _, err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	_ = migrator.Close()

	pool, err := store.Open(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup, nil
}

var _ = Describe("PostgresGrantRepository", func() {
	var (
		ctx     context.Context
		pool    *pgxpool.Pool
		repo    *store.PostgresGrantRepository
		cleanup func()
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		pool, cleanup, err = setupPostgres(ctx)
		Expect(err).NotTo(HaveOccurred())
		repo = store.NewPostgresGrantRepository(pool)
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("Grant", func() {
		It("stores grants and rejects duplicates", func() {
			g := &store.Grant{Subject: "user:alice", Pattern: "*|*|index", CreatedBy: "admin"}
			Expect(repo.Grant(ctx, g)).To(Succeed())
			Expect(g.ID).To(HaveLen(26))
			Expect(g.CreatedAt).NotTo(BeZero())

			err := repo.Grant(ctx, &store.Grant{Subject: "user:alice", Pattern: "*|*|index"})
			Expect(errutil.HasCode(err, store.ErrCodeGrantExists)).To(BeTrue())
		})
	})

	Describe("Revoke", func() {
		It("removes a grant once", func() {
			Expect(repo.Grant(ctx, &store.Grant{Subject: "user:bob", Pattern: "**"})).To(Succeed())
			Expect(repo.Revoke(ctx, "user:bob", "**")).To(Succeed())

			err := repo.Revoke(ctx, "user:bob", "**")
			Expect(errutil.HasCode(err, store.ErrCodeGrantNotFound)).To(BeTrue())
		})
	})

	Describe("List", func() {
		It("filters by subject", func() {
			Expect(repo.Grant(ctx, &store.Grant{Subject: "user:alice", Pattern: "a|*|*"})).To(Succeed())
			Expect(repo.Grant(ctx, &store.Grant{Subject: "user:bob", Pattern: "b|*|*"})).To(Succeed())

			all, err := repo.List(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			bob, err := repo.List(ctx, "user:bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(bob).To(HaveLen(1))
			Expect(bob[0].Pattern).To(Equal("b|*|*"))
		})
	})

	Describe("Identity", func() {
		It("answers resolver checks from stored grants", func() {
			Expect(repo.Grant(ctx, &store.Grant{Subject: "user:alice", Pattern: "Users|Report|*"})).To(Succeed())

			id := store.NewIdentity(ctx, repo, "user:alice", acl.DefaultSeparator)
			r := acl.New(acl.RoutingContext{Module: "AdminUsers", Controller: "Report", Action: "list"}, id,
				acl.WithModulePrefix("Admin"))
			Expect(r.PermissionKey()).To(Equal("Users|Report|list"))
			Expect(r.IsPermitted()).To(BeTrue())

			r.Initialize(acl.RoutingContext{Controller: "Home", Action: "index"})
			Expect(r.IsPermitted()).To(BeFalse())
		})
	})

	Describe("CheckSchema", func() {
		It("reports a fully migrated schema", func() {
			st, err := store.CheckSchema(ctx, pool)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Current.Name).To(Equal("000002_acl_grants_note"))
			Expect(st.Pending).To(BeEmpty())
			Expect(st.Err()).To(Succeed())
		})
	})
})
