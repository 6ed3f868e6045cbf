package sink

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ChunkSize is the number of frames per chunk file.
const ChunkSize = 1000

// LogHeader contains metadata about a recorded frame log.
type LogHeader struct {
	Version     string `json:"version"`
	CreatedNs   int64  `json:"created_ns"`
	CameraID    string `json:"camera_id"`
	TotalFrames uint64 `json:"total_frames"`
	StartNs     int64  `json:"start_ns"`
	EndNs       int64  `json:"end_ns"`
}

// IndexEntry locates one frame inside the chunk files.
type IndexEntry struct {
	FrameIndex  int64
	TimestampNs int64
	ChunkID     uint32
	Offset      uint32
}

// FrameLog is the disk-recording sink: annotated frames are written as
// length-prefixed JPEGs into fixed-size chunk files under a log
// directory, with a JSON header and a binary seek index finalised on
// Close. Write failures are non-fatal to the pipeline but represent data
// loss, so callers log them loudly.
type FrameLog struct {
	basePath string
	cameraID string
	quality  int

	header       LogHeader
	index        []IndexEntry
	currentChunk int
	chunkFile    *os.File
	chunkOffset  uint32

	frameCount uint64
	startNs    int64
	endNs      int64

	mu     sync.Mutex
	closed bool
}

// NewFrameLog creates a frame log under basePath. If basePath is empty, a
// timestamped directory is created in the system temp dir.
func NewFrameLog(basePath, cameraID string, jpegQuality int) (*FrameLog, error) {
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), fmt.Sprintf("lwlog_%s_%d", cameraID, time.Now().Unix()))
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 85
	}

	if err := os.MkdirAll(filepath.Join(basePath, "frames"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &FrameLog{
		basePath:     basePath,
		cameraID:     cameraID,
		quality:      jpegQuality,
		currentChunk: -1,
		index:        make([]IndexEntry, 0),
		header: LogHeader{
			Version:   "1.0",
			CreatedNs: time.Now().UnixNano(),
			CameraID:  cameraID,
		},
	}, nil
}

// Name implements Sink.
func (l *FrameLog) Name() string { return "framelog" }

// Consume writes one annotated frame to the log.
func (l *FrameLog) Consume(res *Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("frame log is closed")
	}

	ts := res.CapturedAt.UnixNano()
	if l.startNs == 0 {
		l.startNs = ts
	}
	l.endNs = ts

	chunkIdx := int(l.frameCount / ChunkSize)
	if chunkIdx != l.currentChunk {
		if err := l.rotateChunk(chunkIdx); err != nil {
			return err
		}
	}

	data, err := l.encodeFrame(res)
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", res.FrameIndex, err)
	}

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(data)))
	if _, err := l.chunkFile.Write(lenBuf); err != nil {
		return fmt.Errorf("failed to write frame length: %w", err)
	}
	if _, err := l.chunkFile.Write(data); err != nil {
		return fmt.Errorf("failed to write frame data: %w", err)
	}

	l.index = append(l.index, IndexEntry{
		FrameIndex:  res.FrameIndex,
		TimestampNs: ts,
		ChunkID:     uint32(chunkIdx),
		Offset:      l.chunkOffset,
	})

	l.chunkOffset += uint32(4 + len(data))
	l.frameCount++
	return nil
}

// encodeFrame serialises the annotated frame as JPEG.
func (l *FrameLog) encodeFrame(res *Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, res.Image, &jpeg.Options{Quality: l.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rotateChunk closes the current chunk and opens the next one.
func (l *FrameLog) rotateChunk(chunkIdx int) error {
	if l.chunkFile != nil {
		if err := l.chunkFile.Close(); err != nil {
			return err
		}
	}

	chunkPath := filepath.Join(l.basePath, "frames", fmt.Sprintf("chunk_%04d.bin", chunkIdx))
	f, err := os.Create(chunkPath)
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}

	l.chunkFile = f
	l.currentChunk = chunkIdx
	l.chunkOffset = 0
	return nil
}

// Close finalises the log: flushes the open chunk and writes the header
// and seek index.
func (l *FrameLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.chunkFile != nil {
		l.chunkFile.Close()
	}

	l.header.TotalFrames = l.frameCount
	l.header.StartNs = l.startNs
	l.header.EndNs = l.endNs

	headerData, err := json.MarshalIndent(l.header, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.basePath, "header.json"), headerData, 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	indexFile, err := os.Create(filepath.Join(l.basePath, "index.bin"))
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer indexFile.Close()

	for _, entry := range l.index {
		if err := binary.Write(indexFile, binary.LittleEndian, entry.FrameIndex); err != nil {
			return err
		}
		if err := binary.Write(indexFile, binary.LittleEndian, entry.TimestampNs); err != nil {
			return err
		}
		if err := binary.Write(indexFile, binary.LittleEndian, entry.ChunkID); err != nil {
			return err
		}
		if err := binary.Write(indexFile, binary.LittleEndian, entry.Offset); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the base path of the log directory.
func (l *FrameLog) Path() string { return l.basePath }

// FrameCount returns the number of frames recorded so far.
func (l *FrameLog) FrameCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frameCount
}
