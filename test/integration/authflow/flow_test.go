// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

//go:build integration

package authflow_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/doorkeep/doorkeep/internal/auth"
)

func registerPayload(username, email string) map[string]any {
	return map[string]any{
		auth.FieldUsername:        username,
		auth.FieldEmail:           email,
		auth.FieldPassword:        "Password123",
		auth.FieldConfirmPassword: "Password123",
	}
}

func loginPayload(identifier string) map[string]any {
	return map[string]any{
		auth.FieldLoginIdentifier: identifier,
		auth.FieldPassword:        "Password123",
	}
}

var _ = Describe("Registration and login against PostgreSQL", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
	})

	Describe("Registering", func() {
		It("persists the user with an argon2id hash", func() {
			Expect(env.Service.Register(ctx, nil, registerPayload("alice", "alice@example.com"))).To(Succeed())

			u, err := env.Users.GetByUsername(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Email).To(Equal("alice@example.com"))
			Expect(u.PasswordHash).To(HavePrefix("$argon2id$"))
		})

		It("rejects a duplicate username at the database constraint", func() {
			Expect(env.Service.Register(ctx, nil, registerPayload("alice", "alice@example.com"))).To(Succeed())

			err := env.Service.Register(ctx, nil, registerPayload("alice", "other@example.com"))
			Expect(err).To(HaveOccurred())
			oopsErr, ok := oops.AsOops(err)
			Expect(ok).To(BeTrue())
			Expect(oopsErr.Code()).To(Equal(auth.CodeAlreadyExists))
			Expect(err.Error()).To(Equal(auth.MsgUsernameTaken))
		})

		It("resolves racing duplicate registrations to exactly one user", func() {
			var wg sync.WaitGroup
			errs := make([]error, 4)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					errs[i] = env.Service.Register(ctx, nil, registerPayload("bob", "bob@example.com"))
				}(i)
			}
			wg.Wait()

			var succeeded int
			for _, err := range errs {
				if err == nil {
					succeeded++
				} else {
					oopsErr, ok := oops.AsOops(err)
					Expect(ok).To(BeTrue())
					Expect(oopsErr.Code()).To(Equal(auth.CodeAlreadyExists))
				}
			}
			Expect(succeeded).To(Equal(1))
		})
	})

	Describe("Logging in", func() {
		BeforeEach(func() {
			Expect(env.Service.Register(ctx, nil, registerPayload("alice", "alice@example.com"))).To(Succeed())
		})

		It("issues a session resolvable by its token", func() {
			sess, token, user, err := env.Service.Login(ctx, nil, loginPayload("alice@example.com"), "ginkgo", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("alice"))
			Expect(token).NotTo(BeEmpty())

			resolved, err := env.Service.ValidateSession(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ID).To(Equal(sess.ID))
			Expect(resolved.Username).To(Equal("alice"))
			Expect(resolved.Email).To(Equal("alice@example.com"))
		})

		It("accepts the username as identifier", func() {
			_, _, user, err := env.Service.Login(ctx, nil, loginPayload("alice"), "ginkgo", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Email).To(Equal("alice@example.com"))
		})

		It("rejects an unknown email with a not-found error", func() {
			_, _, _, err := env.Service.Login(ctx, nil, loginPayload("ghost@example.com"), "ginkgo", "127.0.0.1")
			Expect(err).To(HaveOccurred())
			oopsErr, ok := oops.AsOops(err)
			Expect(ok).To(BeTrue())
			Expect(oopsErr.Code()).To(Equal(auth.CodeNotFound))
		})
	})

	Describe("Logging out", func() {
		It("deletes the session row", func() {
			Expect(env.Service.Register(ctx, nil, registerPayload("alice", "alice@example.com"))).To(Succeed())
			sess, token, _, err := env.Service.Login(ctx, nil, loginPayload("alice"), "ginkgo", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Service.Logout(ctx, sess)).To(Succeed())

			_, err = env.Service.ValidateSession(ctx, token)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Sweeping expired sessions", func() {
		It("removes only expired rows and reports the count", func() {
			Expect(env.Service.Register(ctx, nil, registerPayload("alice", "alice@example.com"))).To(Succeed())
			live, _, _, err := env.Service.Login(ctx, nil, loginPayload("alice"), "ginkgo", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())

			_, hash, err := auth.GenerateSessionToken()
			Expect(err).NotTo(HaveOccurred())
			expired, err := auth.NewSession(live.UserID, "alice", "alice@example.com", hash, "ginkgo", "127.0.0.1",
				time.Now().UTC().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Sessions.Create(ctx, expired)).To(Succeed())

			n, err := env.Service.SweepExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			_, err = env.Sessions.GetByID(ctx, live.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Deleting a user", func() {
		It("cascades to their sessions", func() {
			Expect(env.Service.Register(ctx, nil, registerPayload("alice", "alice@example.com"))).To(Succeed())
			sess, _, user, err := env.Service.Login(ctx, nil, loginPayload("alice"), "ginkgo", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())

			_, err = env.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID.String())
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Sessions.GetByID(ctx, sess.ID)
			Expect(err).To(HaveOccurred())
		})
	})
})
