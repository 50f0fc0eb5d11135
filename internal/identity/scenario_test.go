// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/campuslink/campusid/internal/identity"
	"github.com/campuslink/campusid/internal/snapshot"
)

var _ = Describe("Student account lifecycle", func() {
	var (
		ctx    context.Context
		dir    string
		logger *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	// attach opens a Manager over snaps, or over a fresh store on dir when
	// snaps is nil.
	attach := func(driver string, snaps snapshot.Store) (snapshot.Store, *identity.AccountStore, *identity.Manager) {
		if snaps == nil {
			var err error
			snaps, err = snapshot.Open(ctx, snapshot.Config{Driver: driver, Dir: dir}, logger)
			Expect(err).NotTo(HaveOccurred())
		}

		accounts, err := identity.OpenAccountStore(ctx, snaps, identity.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		mgr, err := identity.NewManager(accounts, snaps, identity.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.Restore(ctx)).To(Succeed())
		return snaps, accounts, mgr
	}

	open := func(driver string) (snapshot.Store, *identity.AccountStore, *identity.Manager) {
		return attach(driver, nil)
	}

	DescribeTable("register, log in, update and restart",
		func(driver string) {
			snaps, accounts, mgr := open(driver)

			By("registering a student")
			s, err := mgr.Register(ctx, studentData("a@x.edu"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Role).To(Equal(identity.RoleStudent))
			Expect(mgr.IsAuthenticated()).To(BeTrue())

			By("logging in with a differently cased email")
			s, err = mgr.Login(ctx, "A@X.EDU", "pw123456")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Email).To(Equal("a@x.edu"))

			By("rejecting a wrong secret")
			_, err = mgr.Login(ctx, "a@x.edu", "wrong")
			Expect(err).To(MatchError(identity.ErrInvalidCredential))

			By("updating skills")
			s, err = mgr.UpdateProfile(ctx, identity.ProfilePatch{Skills: &[]string{"Go"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Profile.Skills).To(Equal([]string{"Go"}))

			stored, err := accounts.FindByEmail(ctx, "a@x.edu")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Profile.Skills).To(Equal([]string{"Go"}))
			Expect(snaps.Close()).To(Succeed())

			By("restarting the process")
			snaps, accounts, mgr = open(driver)
			DeferCleanup(snaps.Close)

			cur, ok := mgr.Current()
			Expect(ok).To(BeTrue())
			Expect(cur.Profile.Skills).To(Equal([]string{"Go"}))
			Expect(accounts.Count(ctx)).To(Equal(1))

			By("logging out twice")
			Expect(mgr.Logout(ctx)).To(Succeed())
			Expect(mgr.Logout(ctx)).To(Succeed())
			Expect(mgr.State()).To(Equal(identity.StateUnauthenticated))

			_, err = mgr.Register(ctx, studentData("A@x.Edu"))
			Expect(err).To(MatchError(identity.ErrEmailAlreadyRegistered))
			Expect(accounts.Count(ctx)).To(Equal(1))
		},
		Entry("file", snapshot.DriverFile),
		Entry("badger", snapshot.DriverBadger),
		Entry("sqlite", snapshot.DriverSQLite),
	)

	DescribeTable("two processes sharing one snapshot store",
		func(driver string) {
			first, _, firstMgr := open(driver)
			var shared snapshot.Store
			if driver == snapshot.DriverMemory {
				shared = first
			}
			secondSnaps, _, secondMgr := attach(driver, shared)

			By("registering from each process")
			_, err := secondMgr.Register(ctx, studentData("b@x.edu"))
			Expect(err).NotTo(HaveOccurred())
			_, err = firstMgr.Register(ctx, facultyData("c@x.edu"))
			Expect(err).NotTo(HaveOccurred())

			By("rejecting an email the other process registered")
			_, err = firstMgr.Register(ctx, studentData("B@X.EDU"))
			Expect(err).To(MatchError(identity.ErrEmailAlreadyRegistered))
			_, err = secondMgr.Register(ctx, facultyData("C@x.edu"))
			Expect(err).To(MatchError(identity.ErrEmailAlreadyRegistered))

			By("logging in to an account registered by the other process")
			_, err = firstMgr.Login(ctx, "b@x.edu", "pw123456")
			Expect(err).NotTo(HaveOccurred())

			if shared == nil {
				Expect(secondSnaps.Close()).To(Succeed())
				Expect(first.Close()).To(Succeed())
				first, _, _ = open(driver)
			}
			DeferCleanup(first.Close)

			By("finding both accounts after reopening")
			all, err := mustAccounts(ctx, first).All(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].Email).To(Equal("b@x.edu"))
			Expect(all[1].Email).To(Equal("c@x.edu"))
		},
		Entry("memory", snapshot.DriverMemory),
		Entry("file", snapshot.DriverFile),
		Entry("sqlite", snapshot.DriverSQLite),
	)

	It("keeps the session without expiry until logout", func() {
		snaps, _, mgr := open(snapshot.DriverMemory)
		DeferCleanup(snaps.Close)

		_, err := mgr.Register(ctx, facultyData("r@x.edu"))
		Expect(err).NotTo(HaveOccurred())

		restarted, err := identity.NewManager(mustAccounts(ctx, snaps), snaps)
		Expect(err).NotTo(HaveOccurred())
		Expect(restarted.Restore(ctx)).To(Succeed())
		Expect(restarted.IsAuthenticated()).To(BeTrue())
	})
})

func mustAccounts(ctx context.Context, snaps snapshot.Store) *identity.AccountStore {
	accounts, err := identity.OpenAccountStore(ctx, snaps)
	Expect(err).NotTo(HaveOccurred())
	return accounts
}
