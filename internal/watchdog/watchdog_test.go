// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/choria-io/execstep/model"
	"github.com/choria-io/execstep/model/modelmocks"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

func TestWatchdog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Internal/Watchdog")
}

var _ = Describe("Watchdog", func() {
	var (
		mockctl *gomock.Controller
		logger  *modelmocks.MockLogger
		handle  *modelmocks.MockProcessHandle
	)

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		logger = modelmocks.NewLogger(mockctl)
		handle = modelmocks.NewMockProcessHandle(mockctl)
		handle.EXPECT().Pid().Return(10).AnyTimes()
	})

	AfterEach(func() {
		mockctl.Finish()
	})

	Describe("Start", func() {
		It("Should only supervise one process", func() {
			w := New(time.Hour, logger)
			Expect(w.Start(context.Background(), handle)).To(Succeed())
			Expect(w.Start(context.Background(), handle)).To(MatchError(model.ErrAlreadyWatching))
			w.Stop()
			Expect(w.Start(context.Background(), handle)).To(MatchError(model.ErrAlreadyWatching))
		})
	})

	Describe("Timeout", func() {
		It("Should kill processes that run too long", func() {
			handle.EXPECT().Kill().Return(nil).Times(1)

			w := New(20*time.Millisecond, logger)
			Expect(w.Start(context.Background(), handle)).To(Succeed())

			Eventually(w.Killed).Should(BeTrue())
			Expect(w.Reason()).To(Equal(ReasonTimeout))

			w.Stop()
			Expect(w.Killed()).To(BeTrue())
		})

		It("Should leave reporting the kill to the caller", func() {
			quiet := modelmocks.NewMockLogger(mockctl)
			quiet.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
			quiet.EXPECT().Warn(gomock.Any(), gomock.Any()).Times(0)
			handle.EXPECT().Kill().Return(nil).Times(1)

			w := New(20*time.Millisecond, quiet)
			Expect(w.Start(context.Background(), handle)).To(Succeed())

			Eventually(w.Killed).Should(BeTrue())
			w.Stop()
		})

		It("Should not fire once stopped", func() {
			handle.EXPECT().Kill().Times(0)

			w := New(20*time.Millisecond, logger)
			Expect(w.Start(context.Background(), handle)).To(Succeed())
			w.Stop()

			Consistently(w.Killed, 100*time.Millisecond).Should(BeFalse())
			Expect(w.Reason()).To(BeEmpty())
		})

		It("Should not report processes that already exited as killed", func() {
			handle.EXPECT().Kill().Return(os.ErrProcessDone).Times(1)

			w := New(time.Millisecond, logger)
			Expect(w.Start(context.Background(), handle)).To(Succeed())

			Consistently(w.Killed, 100*time.Millisecond).Should(BeFalse())
		})

		It("Should report failed kills as killed", func() {
			handle.EXPECT().Kill().Return(errors.New("permission denied")).Times(1)

			w := New(time.Millisecond, logger)
			Expect(w.Start(context.Background(), handle)).To(Succeed())

			Eventually(w.Killed).Should(BeTrue())
		})
	})

	Describe("Cancellation", func() {
		It("Should kill when the context is cancelled", func() {
			handle.EXPECT().Kill().Return(nil).Times(1)

			ctx, cancel := context.WithCancel(context.Background())
			w := New(0, logger)
			Expect(w.Start(ctx, handle)).To(Succeed())
			cancel()

			Eventually(w.Killed).Should(BeTrue())
			Expect(w.Reason()).To(Equal(ReasonCancelled))
		})

		It("Should never fire without a timeout or cancellation", func() {
			handle.EXPECT().Kill().Times(0)

			w := New(0, logger)
			Expect(w.Start(context.Background(), handle)).To(Succeed())
			Consistently(w.Killed, 50*time.Millisecond).Should(BeFalse())
			w.Stop()
		})
	})
})
