// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"errors"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/chatbinder/core"
)

// Codec is a MUS serializer for one stored type.
type Codec[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

// Codecs for the stored entities.
var (
	ChatMUS           Codec[core.Chat]           = chatMUS{}
	ChunkMUS          Codec[core.Chunk]          = chunkMUS{}
	EmbeddingMUS      Codec[core.Embedding]      = embeddingMUS{}
	BinderMUS         Codec[core.Binder]         = binderMUS{}
	BinderChatMUS     Codec[core.BinderChat]     = binderChatMUS{}
	MergedDocumentMUS Codec[core.MergedDocument] = mergedDocumentMUS{}
	CheckpointMUS     Codec[core.Checkpoint]     = checkpointMUS{}

	// TimeMUS stores instants as Unix microseconds. The zero time is stored as 0.
	TimeMUS Codec[time.Time] = timeMUS{}
)

var errVectorLength = errors.New("vector length out of range")

type timeMUS struct{}

func (timeMUS) micros(v time.Time) int64 {
	if v.IsZero() {
		return 0
	}
	return v.UnixMicro()
}

func (c timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(c.micros(v), bs)
}

func (timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func (c timeMUS) Size(v time.Time) (size int) {
	return varint.Int64.Size(c.micros(v))
}

type chatMUS struct{}

func (chatMUS) Marshal(v core.Chat, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Owner, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.URL, bs[n:])
	n += ord.String.Marshal(string(v.Source), bs[n:])
	n += varint.Int.Marshal(v.MessageCount, bs[n:])
	return n + TimeMUS.Marshal(v.CreatedAt, bs[n:])
}

func (chatMUS) Unmarshal(bs []byte) (v core.Chat, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Owner, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.URL, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var source string
	source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Source = core.Source(source)
	v.MessageCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (chatMUS) Size(v core.Chat) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Owner)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.URL)
	size += ord.String.Size(string(v.Source))
	size += varint.Int.Size(v.MessageCount)
	return size + TimeMUS.Size(v.CreatedAt)
}

type chunkMUS struct{}

func (chunkMUS) Marshal(v core.Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.ChatID, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int.Marshal(v.Index, bs[n:])
	return n + TimeMUS.Marshal(v.CreatedAt, bs[n:])
}

func (chunkMUS) Unmarshal(bs []byte) (v core.Chunk, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.ChatID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Index, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (chunkMUS) Size(v core.Chunk) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.ChatID)
	size += ord.String.Size(v.Content)
	size += varint.Int.Size(v.Index)
	return size + TimeMUS.Size(v.CreatedAt)
}

type embeddingMUS struct{}

func (embeddingMUS) Marshal(v core.Embedding, bs []byte) (n int) {
	n = ord.String.Marshal(v.ChunkID, bs)
	n += varint.Int.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	n += ord.String.Marshal(v.Model, bs[n:])
	n += ord.String.Marshal(v.ContentDigest, bs[n:])
	return n + TimeMUS.Marshal(v.CreatedAt, bs[n:])
}

func (embeddingMUS) Unmarshal(bs []byte) (v core.Embedding, n int, err error) {
	v.ChunkID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var (
		n1     int
		length int
	)
	length, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	// raw.Float32 is four bytes wide
	if length < 0 || length > (len(bs)-n)/4 {
		err = errVectorLength
		return
	}
	if length > 0 {
		v.Vector = make([]float32, length)
		for i := range v.Vector {
			v.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	v.Model, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ContentDigest, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (embeddingMUS) Size(v core.Embedding) (size int) {
	size = ord.String.Size(v.ChunkID)
	size += varint.Int.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += raw.Float32.Size(f)
	}
	size += ord.String.Size(v.Model)
	size += ord.String.Size(v.ContentDigest)
	return size + TimeMUS.Size(v.CreatedAt)
}

type binderMUS struct{}

func (binderMUS) Marshal(v core.Binder, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Owner, bs[n:])
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Description, bs[n:])
	n += TimeMUS.Marshal(v.CreatedAt, bs[n:])
	return n + TimeMUS.Marshal(v.UpdatedAt, bs[n:])
}

func (binderMUS) Unmarshal(bs []byte) (v core.Binder, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Owner, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Description, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (binderMUS) Size(v core.Binder) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Owner)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.Description)
	size += TimeMUS.Size(v.CreatedAt)
	return size + TimeMUS.Size(v.UpdatedAt)
}

type binderChatMUS struct{}

func (binderChatMUS) Marshal(v core.BinderChat, bs []byte) (n int) {
	n = ord.String.Marshal(v.BinderID, bs)
	n += ord.String.Marshal(v.ChatID, bs[n:])
	return n + TimeMUS.Marshal(v.AddedAt, bs[n:])
}

func (binderChatMUS) Unmarshal(bs []byte) (v core.BinderChat, n int, err error) {
	v.BinderID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.ChatID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.AddedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (binderChatMUS) Size(v core.BinderChat) (size int) {
	size = ord.String.Size(v.BinderID)
	size += ord.String.Size(v.ChatID)
	return size + TimeMUS.Size(v.AddedAt)
}

type mergedDocumentMUS struct{}

func (mergedDocumentMUS) Marshal(v core.MergedDocument, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.BinderID, bs[n:])
	n += ord.String.Marshal(v.Document, bs[n:])
	n += ord.Bool.Marshal(v.Synthesized, bs[n:])
	n += ord.String.Marshal(v.SourceDigest, bs[n:])
	return n + TimeMUS.Marshal(v.GeneratedAt, bs[n:])
}

func (mergedDocumentMUS) Unmarshal(bs []byte) (v core.MergedDocument, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.BinderID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Document, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Synthesized, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceDigest, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.GeneratedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (mergedDocumentMUS) Size(v core.MergedDocument) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.BinderID)
	size += ord.String.Size(v.Document)
	size += ord.Bool.Size(v.Synthesized)
	size += ord.String.Size(v.SourceDigest)
	return size + TimeMUS.Size(v.GeneratedAt)
}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(v core.Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += ord.String.Marshal(v.Cursor, bs[n:])
	return n + TimeMUS.Marshal(v.UpdatedAt, bs[n:])
}

func (checkpointMUS) Unmarshal(bs []byte) (v core.Checkpoint, n int, err error) {
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Cursor, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (checkpointMUS) Size(v core.Checkpoint) (size int) {
	size = ord.String.Size(v.Name)
	size += ord.String.Size(v.Cursor)
	return size + TimeMUS.Size(v.UpdatedAt)
}
