// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package execresource

import (
	"errors"

	"github.com/choria-io/execstep/model"
	"github.com/choria-io/execstep/model/modelmocks"
	"github.com/choria-io/execstep/properties"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("ResultHandler", func() {
	var (
		mockctl *gomock.Controller
		logger  *modelmocks.MockLogger
		store   *properties.MemoryStore
		props   *model.ExecProperties
	)

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		logger = modelmocks.NewMockLogger(mockctl)
		store = properties.NewMemoryStore(modelmocks.NewLogger(mockctl))
		props = &model.ExecProperties{Name: "test", Executable: "thing", ResultProperty: "rc"}
	})

	AfterEach(func() {
		mockctl.Finish()
	})

	handle := func(res *model.LaunchResult) error {
		return NewResultHandler(props, store, logger).Handle(res)
	}

	It("Should ignore missing results", func() {
		Expect(handle(nil)).To(Succeed())
	})

	It("Should export the exit code of successful runs", func() {
		Expect(handle(&model.LaunchResult{ExitCode: 0})).To(Succeed())
		Expect(store.All()).To(Equal(map[string]string{"rc": "0"}))
	})

	Describe("Exit codes", func() {
		It("Should log failures without fail on error", func() {
			logger.EXPECT().Error("Result: 3")

			Expect(handle(&model.LaunchResult{ExitCode: 3})).To(Succeed())
			Expect(store.All()["rc"]).To(Equal("3"))
		})

		It("Should fail with fail on error and still export the code", func() {
			props.FailOnError = true

			err := handle(&model.LaunchResult{ExitCode: 3})
			Expect(errors.Is(err, model.ErrNonZeroExit)).To(BeTrue())
			Expect(err.Error()).To(Equal("exec#test: exec returned: 3"))

			var be *model.BuildError
			Expect(errors.As(err, &be)).To(BeTrue())
			Expect(be.Location).To(Equal("exec#test"))

			Expect(store.All()["rc"]).To(Equal("3"))
		})

		It("Should honor configured success codes", func() {
			props.FailOnError = true
			props.Returns = []int{0, 3}

			Expect(handle(&model.LaunchResult{ExitCode: 3})).To(Succeed())
		})

		It("Should honor success expressions", func() {
			props.FailOnError = true
			props.SuccessWhen = "code < 2"
			Expect(props.Validate()).To(Succeed())

			Expect(handle(&model.LaunchResult{ExitCode: 1})).To(Succeed())
			Expect(errors.Is(handle(&model.LaunchResult{ExitCode: 2}), model.ErrNonZeroExit)).To(BeTrue())
		})
	})

	Describe("Killed processes", func() {
		It("Should fail with fail on error without exporting", func() {
			props.FailOnError = true

			err := handle(&model.LaunchResult{Killed: true, ExitCode: -1})
			Expect(errors.Is(err, model.ErrTimeoutKilled)).To(BeTrue())
			Expect(err.Error()).To(Equal("exec#test: Timeout: killed the sub-process"))
			Expect(store.All()).To(BeEmpty())
		})

		It("Should warn without fail on error and export the code", func() {
			logger.EXPECT().Warn("Timeout: killed the sub-process")
			logger.EXPECT().Error("Result: -1")

			Expect(handle(&model.LaunchResult{Killed: true, ExitCode: -1})).To(Succeed())
			Expect(store.All()["rc"]).To(Equal("-1"))
		})

		It("Should never consider killed processes successful", func() {
			props.Returns = []int{-1}
			logger.EXPECT().Warn(gomock.Any())
			logger.EXPECT().Error("Result: -1")

			Expect(handle(&model.LaunchResult{Killed: true, ExitCode: -1})).To(Succeed())
		})
	})

	Describe("Start failures", func() {
		It("Should fail by default", func() {
			err := handle(&model.LaunchResult{FailedToStart: true, StartError: "no such file", ExitCode: -1})
			Expect(errors.Is(err, model.ErrExecutionFailed)).To(BeTrue())
			Expect(err.Error()).To(Equal("exec#test: Execute failed: no such file"))
			Expect(store.All()).To(BeEmpty())
		})

		It("Should fail independently of fail on error", func() {
			props.FailOnError = false
			err := handle(&model.LaunchResult{FailedToStart: true, StartError: "no such file"})
			Expect(errors.Is(err, model.ErrExecutionFailed)).To(BeTrue())
		})

		It("Should only log when configured not to fail", func() {
			f := false
			props.FailIfExecutionFails = &f
			props.FailOnError = true
			logger.EXPECT().Error("Execute failed: no such file")

			Expect(handle(&model.LaunchResult{FailedToStart: true, StartError: "no such file", ExitCode: -1})).To(Succeed())
			Expect(store.All()).To(BeEmpty())
		})
	})

	Describe("Spawned processes", func() {
		It("Should not export anything", func() {
			props.ResultProperty = ""
			logger.EXPECT().Info("Spawned process", "pid", 10)

			Expect(handle(&model.LaunchResult{Spawned: true, Pid: 10})).To(Succeed())
			Expect(store.All()).To(BeEmpty())
		})
	})

	Describe("Captures", func() {
		It("Should export captures after the result", func() {
			props.OutputProperty = "out"
			Expect(props.AddRedirector(&model.RedirectorProperties{ErrorProperty: "err"})).To(Succeed())

			Expect(handle(&model.LaunchResult{ExitCode: 0, Captures: map[string]string{"out": "hello\n", "err": "", "other": "x"}})).To(Succeed())
			Expect(store.All()).To(Equal(map[string]string{"rc": "0", "out": "hello\n", "err": ""}))
		})

		It("Should not override existing values", func() {
			props.OutputProperty = "out"
			Expect(store.Set("out", "original")).To(Succeed())
			Expect(store.Set("rc", "99")).To(Succeed())
			logger.EXPECT().Debug("Override ignored for property", "property", "rc")
			logger.EXPECT().Debug("Override ignored for property", "property", "out")

			Expect(handle(&model.LaunchResult{ExitCode: 0, Captures: map[string]string{"out": "new"}})).To(Succeed())
			Expect(store.All()).To(Equal(map[string]string{"rc": "99", "out": "original"}))
		})
	})
})
