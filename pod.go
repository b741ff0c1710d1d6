// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package podser

// podMode tags which view a Pod carries. A Pod holds exactly one of the
// two views, never both.
type podMode uint8

const (
	podSave podMode = iota + 1
	podLoad
)

func (m podMode) String() string {
	switch m {
	case podSave:
		return "save"
	case podLoad:
		return "load"
	}
	return "unknown"
}

// Pod is the wire-format shadow the archive actually visits: a tagged
// union over {SerializeView, DeserializeView}. A Pod built from a live
// instance carries a SerializeView and may be queried for it but never
// constructed from; a Pod built empty carries a DeserializeView and
// supports exactly one Construct call, after which the view is gone.
//
// Accessing the wrong variant panics with a protocol-misuse error, in the
// same spirit as calling the inactive alternative of a tagged union.
type Pod struct {
	codec *codecCore
	mode  podMode
	save  *SerializeView
	load  *DeserializeView
}

// Mode reports whether the Pod is in save or load mode.
func (p *Pod) Mode() string { return p.mode.String() }

// SaveView returns the serialize view. Panics on a load-mode Pod.
func (p *Pod) SaveView() *SerializeView {
	if p.mode != podSave {
		protocolPanicf("SaveView called on a %s-mode pod of %s", p.mode, p.codec.name)
	}
	return p.save
}

// LoadView returns the deserialize view. Panics on a save-mode Pod.
func (p *Pod) LoadView() *DeserializeView {
	if p.mode != podLoad {
		protocolPanicf("LoadView called on a %s-mode pod of %s", p.mode, p.codec.name)
	}
	return p.load
}

// SetOriginalBase records the base-typed handle a polymorphic save
// started from. Save-mode only; the field is set at most once and a
// second attempt panics.
func (p *Pod) SetOriginalBase(base interface{}) {
	if p.mode != podSave {
		protocolPanicf("SetOriginalBase can only be invoked on save-mode pods")
	}
	if p.save.hasOriginalBase {
		protocolPanicf("the original base of %s has already been set", p.codec.name)
	}
	p.save.originalBase = base
	p.save.hasOriginalBase = true
}

// OriginalBase returns the handle recorded by SetOriginalBase.
func (p *Pod) OriginalBase() interface{} {
	if p.mode != podSave {
		protocolPanicf("OriginalBase can only be invoked on save-mode pods")
	}
	if !p.save.hasOriginalBase {
		protocolPanicf("the original base of %s has not been set", p.codec.name)
	}
	return p.save.originalBase
}

// Construct consumes the deserialize view and produces the fully-formed
// instance in one step. Load-mode only; the second call reports that the
// view has already been consumed.
func (p *Pod) Construct() (interface{}, error) {
	if p.mode != podLoad {
		return nil, ProtocolErrorf("Construct called on a %s-mode pod of %s", p.mode, p.codec.name)
	}
	return p.codec.constructValue(p.load)
}

// saveBody writes the Pod's view into the archive, bases first in
// declaration order, then local fields.
func (p *Pod) saveBody(ctx *WriteContext) {
	p.codec.saveBody(ctx, p.SaveView())
}
