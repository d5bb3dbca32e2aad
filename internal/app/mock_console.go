// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/platform"
)

// mockScenario scripts a simulated platform for one acquisition.
type mockScenario struct {
	name  string
	setup func(s *platform.Sim)
}

var mockScenarios = []mockScenario{
	{"fresh cached fix", func(s *platform.Sim) {
		s.SetPermission(location.GrantedPrecise)
		s.SetLastKnown(location.ProviderGPS, mockFix(-40*time.Second, 8))
		s.SetLastKnown(location.ProviderNetwork, mockFix(-5*time.Second, 45))
	}},
	{"prompt then live fix", func(s *platform.Sim) {
		s.AnswerPrompt(location.GrantedPrecise, 500*time.Millisecond)
		s.RespondWith(location.ProviderGPS, mockFix(0, 6), 300*time.Millisecond)
	}},
	{"stale cache, provider silent", func(s *platform.Sim) {
		s.SetPermission(location.GrantedCoarse)
		s.SetLastKnown(location.ProviderNetwork, mockFix(-time.Hour, 30))
	}},
	{"permission denied", func(s *platform.Sim) {
		s.SetPermission(location.Denied)
	}},
	{"location services off", func(s *platform.Sim) {
		s.SetPermission(location.GrantedPrecise)
		s.SetServicesEnabled(false)
	}},
}

func mockFix(age time.Duration, accuracy float64) location.Fix {
	return location.Fix{
		Latitude:  52.520008,
		Longitude: 13.404954,
		Accuracy:  accuracy,
		Speed:     location.Unknown,
		Bearing:   location.Unknown,
		Timestamp: time.Now().Add(age).UnixMilli(),
	}
}

// RunMockConsole runs every scripted scenario against a simulated platform
// with short budgets and prints what the command layer would receive.
func RunMockConsole() error {
	opts := location.Options{
		ProbeTimeout:   2 * time.Second,
		AttemptTimeout: 3 * time.Second,
	}

	for _, sc := range mockScenarios {
		sim := platform.NewSim(nil)
		sc.setup(sim)
		acq := location.NewAcquirer(sim, opts)

		start := time.Now()
		r := acq.Start(context.Background(), nil)
		<-r.Done()
		out := r.Outcome()

		fmt.Printf("%-30s source=%-10s elapsed=%-8s ", sc.name, out.Source, time.Since(start).Round(time.Millisecond))
		if out.Fix == nil {
			fmt.Printf("no location (%v)\n", out.Err)
			continue
		}
		fmt.Println(formatFix(string(out.Fix.Provider), *out.Fix))
	}
	return nil
}
