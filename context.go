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

// WriteContext carries an ArchiveWriter through a save pass together with
// a sticky first error, so the field walk does not need an error check
// after every archive call.
type WriteContext struct {
	writer  ArchiveWriter
	session *Session
	err     error
}

func newWriteContext(w ArchiveWriter, s *Session) *WriteContext {
	return &WriteContext{writer: w, session: s}
}

// Writer returns the underlying archive writer.
func (c *WriteContext) Writer() ArchiveWriter { return c.writer }

// sharedSession returns the session scoping shared-handle aliasing for
// this pass. Entry points invoked without an explicit session get one
// lazily, scoped to the single pass.
func (c *WriteContext) sharedSession() *Session {
	if c.session == nil {
		c.session = NewSession()
	}
	return c.session
}

// SetError records the first error seen; later errors are dropped.
func (c *WriteContext) SetError(err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
}

func (c *WriteContext) HasError() bool { return c.err != nil }
func (c *WriteContext) Err() error     { return c.err }

func (c *WriteContext) begin(name string) {
	if c.err != nil {
		return
	}
	c.SetError(c.writer.BeginElement(name))
}

func (c *WriteContext) end() {
	if c.err != nil {
		return
	}
	c.SetError(c.writer.EndElement())
}

func (c *WriteContext) writeBool(name string, v bool) {
	if c.err != nil {
		return
	}
	c.SetError(c.writer.WriteBool(name, v))
}

func (c *WriteContext) writeInt(name string, v int64) {
	if c.err != nil {
		return
	}
	c.SetError(c.writer.WriteInt(name, v))
}

func (c *WriteContext) writeUint(name string, v uint64) {
	if c.err != nil {
		return
	}
	c.SetError(c.writer.WriteUint(name, v))
}

func (c *WriteContext) writeFloat(name string, v float64) {
	if c.err != nil {
		return
	}
	c.SetError(c.writer.WriteFloat(name, v))
}

func (c *WriteContext) writeString(name string, v string) {
	if c.err != nil {
		return
	}
	c.SetError(c.writer.WriteString(name, v))
}

func (c *WriteContext) writeBytes(name string, v []byte) {
	if c.err != nil {
		return
	}
	c.SetError(c.writer.WriteBytes(name, v))
}

// ReadContext is the load-side counterpart of WriteContext. Read helpers
// return zero values once an error is recorded; callers check Err once at
// the end of the pass.
type ReadContext struct {
	reader  ArchiveReader
	session *Session
	err     error
}

func newReadContext(r ArchiveReader, s *Session) *ReadContext {
	return &ReadContext{reader: r, session: s}
}

// Reader returns the underlying archive reader.
func (c *ReadContext) Reader() ArchiveReader { return c.reader }

// sharedSession mirrors WriteContext.sharedSession for the load side.
func (c *ReadContext) sharedSession() *Session {
	if c.session == nil {
		c.session = NewSession()
	}
	return c.session
}

// SetError records the first error seen; later errors are dropped.
func (c *ReadContext) SetError(err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
}

func (c *ReadContext) HasError() bool { return c.err != nil }
func (c *ReadContext) Err() error     { return c.err }

func (c *ReadContext) begin(name string) {
	if c.err != nil {
		return
	}
	c.SetError(c.reader.BeginElement(name))
}

func (c *ReadContext) end() {
	if c.err != nil {
		return
	}
	c.SetError(c.reader.EndElement())
}

func (c *ReadContext) readBool(name string) bool {
	if c.err != nil {
		return false
	}
	v, err := c.reader.ReadBool(name)
	c.SetError(err)
	return v
}

func (c *ReadContext) readInt(name string) int64 {
	if c.err != nil {
		return 0
	}
	v, err := c.reader.ReadInt(name)
	c.SetError(err)
	return v
}

func (c *ReadContext) readUint(name string) uint64 {
	if c.err != nil {
		return 0
	}
	v, err := c.reader.ReadUint(name)
	c.SetError(err)
	return v
}

func (c *ReadContext) readFloat(name string) float64 {
	if c.err != nil {
		return 0
	}
	v, err := c.reader.ReadFloat(name)
	c.SetError(err)
	return v
}

func (c *ReadContext) readString(name string) string {
	if c.err != nil {
		return ""
	}
	v, err := c.reader.ReadString(name)
	c.SetError(err)
	return v
}

func (c *ReadContext) readBytes(name string) []byte {
	if c.err != nil {
		return nil
	}
	v, err := c.reader.ReadBytes(name)
	c.SetError(err)
	return v
}
