package badger

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	chatPrefix         = "chat:"      // chat:<chatID> -> chatRow
	chatOwnerPrefix    = "chatown:"   // chatown:<owner>\x00<seq> -> chatID
	chunkPrefix        = "chunk:"     // chunk:<chatID>:<index> -> Chunk
	chunkIDPrefix      = "chunkid:"   // chunkid:<chunkID> -> chunk key
	embeddingPrefix    = "emb:"       // emb:<chunkID> -> Embedding
	binderPrefix       = "binder:"    // binder:<binderID> -> binderRow
	binderOwnerPrefix  = "binderown:" // binderown:<owner>\x00<seq> -> binderID
	binderChatPrefix   = "bchat:"     // bchat:<binderID>:<chatID> -> binderChatRow
	binderOrderPrefix  = "border:"    // border:<binderID>:<seq> -> chatID
	chatBinderPrefix   = "chatbind:"  // chatbind:<chatID>:<seq> -> binderID
	mergedPrefix       = "merged:"    // merged:<binderID>:<seq> -> MergedDocument
	checkpointPrefix   = "chkpt:"     // chkpt:<name> -> Checkpoint
	chatSeqName        = "seq:chat"
	binderSeqName      = "seq:binder"
	associationSeqName = "seq:bchat"
	mergedSeqName      = "seq:merged"
)

// ownerSeparator terminates the owner segment of owner index keys.
// Owners may not contain it.
const ownerSeparator = 0x00

// join concatenates key segments without separators.
func join(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// seqBytes encodes a sequence number in BigEndian order so lexicographic sort works correctly.
func seqBytes(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func makeChatKey(chatID string) []byte {
	return []byte(chatPrefix + chatID)
}

// makeChatOwnerPartialKey generates the prefix of an owner's chat index.
// Format: prefix:owner\x00
func makeChatOwnerPartialKey(owner string) []byte {
	return join([]byte(chatOwnerPrefix+owner), []byte{ownerSeparator})
}

// makeChatOwnerKey generates a composite key for the owner's chat index.
// Format: prefix:owner\x00seq
func makeChatOwnerKey(owner string, seq uint64) []byte {
	return join(makeChatOwnerPartialKey(owner), seqBytes(seq))
}

// makeChunkPartialKey generates the prefix of a chat's chunks.
// Format: prefix:chatID:
func makeChunkPartialKey(chatID string) []byte {
	return []byte(chunkPrefix + chatID + ":")
}

// makeChunkKey generates the key of a chunk by its position within the chat.
// Format: prefix:chatID:index
func makeChunkKey(chatID string, index int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(index))
	return join(makeChunkPartialKey(chatID), buf)
}

func makeChunkIDKey(chunkID string) []byte {
	return []byte(chunkIDPrefix + chunkID)
}

func makeEmbeddingKey(chunkID string) []byte {
	return []byte(embeddingPrefix + chunkID)
}

func makeBinderKey(binderID string) []byte {
	return []byte(binderPrefix + binderID)
}

func makeBinderOwnerPartialKey(owner string) []byte {
	return join([]byte(binderOwnerPrefix+owner), []byte{ownerSeparator})
}

func makeBinderOwnerKey(owner string, seq uint64) []byte {
	return join(makeBinderOwnerPartialKey(owner), seqBytes(seq))
}

func makeBinderChatPartialKey(binderID string) []byte {
	return []byte(binderChatPrefix + binderID + ":")
}

// makeBinderChatKey generates the uniqueness key of a binder/chat pair.
// Format: prefix:binderID:chatID
func makeBinderChatKey(binderID, chatID string) []byte {
	return []byte(binderChatPrefix + binderID + ":" + chatID)
}

func makeBinderOrderPartialKey(binderID string) []byte {
	return []byte(binderOrderPrefix + binderID + ":")
}

// makeBinderOrderKey generates a key ordering a binder's chats by association time.
// Format: prefix:binderID:seq
func makeBinderOrderKey(binderID string, seq uint64) []byte {
	return join(makeBinderOrderPartialKey(binderID), seqBytes(seq))
}

func makeChatBinderPartialKey(chatID string) []byte {
	return []byte(chatBinderPrefix + chatID + ":")
}

// makeChatBinderKey generates the reverse index from a chat to its binders.
// Format: prefix:chatID:seq
func makeChatBinderKey(chatID string, seq uint64) []byte {
	return join(makeChatBinderPartialKey(chatID), seqBytes(seq))
}

func makeMergedPartialKey(binderID string) []byte {
	return []byte(mergedPrefix + binderID + ":")
}

// makeMergedKey generates a key for one merge history entry.
// Format: prefix:binderID:seq
func makeMergedKey(binderID string, seq uint64) []byte {
	return join(makeMergedPartialKey(binderID), seqBytes(seq))
}

// makeCheckpointKey generates a key for job checkpoints.
func makeCheckpointKey(name string) []byte {
	return []byte(checkpointPrefix + name)
}
