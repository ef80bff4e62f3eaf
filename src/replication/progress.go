/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package replication

import (
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressReporter is the bare minimum required to render replication
// progress; it exists so the engine and tests can run without a terminal.
type ProgressReporter interface {
	StartBar(label string, total int64) ProgressBar
}

type ProgressBar interface {
	SetCurrent(current int64)
	Finish()
}

type noopReporter struct{}

func (noopReporter) StartBar(label string, total int64) ProgressBar { return noopBar{} }

type noopBar struct{}

func (noopBar) SetCurrent(current int64) {}
func (noopBar) Finish()                  {}

// MPBReporter renders bars into a shared mpb progress container.
type MPBReporter struct {
	container *mpb.Progress
}

func NewMPBReporter(container *mpb.Progress) *MPBReporter {
	return &MPBReporter{container: container}
}

func (r *MPBReporter) StartBar(label string, total int64) ProgressBar {
	bar := r.container.AddBar(total,
		mpb.BarFillerClearOnComplete(),
		mpb.PrependDecorators(
			decor.Name(label),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.NewPercentage("%d", decor.WCSyncSpaceR), "completed",
			),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO), "",
			),
		),
	)
	return &mpbBar{bar: bar, total: total}
}

type mpbBar struct {
	bar   *mpb.Bar
	total int64
}

func (b *mpbBar) SetCurrent(current int64) {
	b.bar.SetCurrent(current)
}

func (b *mpbBar) Finish() {
	// Force completion so the container does not hang waiting on a bar
	// whose poller stopped short of the total.
	b.bar.SetCurrent(b.total)
}
