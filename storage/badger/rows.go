package badger

import (
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

// chatRow is the stored form of a chat. Seq locates its owner index entry.
type chatRow struct {
	Chat *core.Chat
	Seq  uint64
}

// binderRow is the stored form of a binder. Seq locates its owner index entry.
type binderRow struct {
	Binder *core.Binder
	Seq    uint64
}

// binderChatRow is the stored form of an association. Seq locates its order index entries.
type binderChatRow struct {
	Association *core.BinderChat
	Seq         uint64
}

var (
	chatRowMUS       storage.Codec[chatRow]       = rowMUS[core.Chat, chatRow]{storage.ChatMUS, chatRowParts{}}
	binderRowMUS     storage.Codec[binderRow]     = rowMUS[core.Binder, binderRow]{storage.BinderMUS, binderRowParts{}}
	binderChatRowMUS storage.Codec[binderChatRow] = rowMUS[core.BinderChat, binderChatRow]{storage.BinderChatMUS, binderChatRowParts{}}
)

// rowParts splits a row into its entity and sequence and joins them back.
type rowParts[E, R any] interface {
	split(r R) (E, uint64)
	join(e E, seq uint64) R
}

// rowMUS encodes a row as its entity followed by its sequence number.
type rowMUS[E, R any] struct {
	entity storage.Codec[E]
	parts  rowParts[E, R]
}

func (c rowMUS[E, R]) Marshal(v R, bs []byte) (n int) {
	e, seq := c.parts.split(v)
	n = c.entity.Marshal(e, bs)
	return n + varint.Uint64.Marshal(seq, bs[n:])
}

func (c rowMUS[E, R]) Unmarshal(bs []byte) (v R, n int, err error) {
	e, n, err := c.entity.Unmarshal(bs)
	if err != nil {
		return
	}
	seq, n1, err := varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	return c.parts.join(e, seq), n, nil
}

func (c rowMUS[E, R]) Size(v R) (size int) {
	e, seq := c.parts.split(v)
	return c.entity.Size(e) + varint.Uint64.Size(seq)
}

type chatRowParts struct{}

func (chatRowParts) split(r chatRow) (core.Chat, uint64) {
	if r.Chat == nil {
		return core.Chat{}, r.Seq
	}
	return *r.Chat, r.Seq
}

func (chatRowParts) join(e core.Chat, seq uint64) chatRow {
	return chatRow{Chat: &e, Seq: seq}
}

type binderRowParts struct{}

func (binderRowParts) split(r binderRow) (core.Binder, uint64) {
	if r.Binder == nil {
		return core.Binder{}, r.Seq
	}
	return *r.Binder, r.Seq
}

func (binderRowParts) join(e core.Binder, seq uint64) binderRow {
	return binderRow{Binder: &e, Seq: seq}
}

type binderChatRowParts struct{}

func (binderChatRowParts) split(r binderChatRow) (core.BinderChat, uint64) {
	if r.Association == nil {
		return core.BinderChat{}, r.Seq
	}
	return *r.Association, r.Seq
}

func (binderChatRowParts) join(e core.BinderChat, seq uint64) binderChatRow {
	return binderChatRow{Association: &e, Seq: seq}
}
