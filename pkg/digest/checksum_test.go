package digest

import (
	"bytes"
	"crypto/md5"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestComputeChecksumKnownDigests(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "空文件", content: "", expected: "d41d8cd98f00b204e9800998ecf8427e"},
		{name: "abc", content: "abc", expected: "900150983cd24fb0d6963f7d28e17f72"},
		{name: "句子", content: "The quick brown fox jumps over the lazy dog", expected: "9e107d9d372bb6826bd81d3542a419d6"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, []byte(tc.content))

			checksum, ok := ComputeChecksum(path)
			require.True(t, ok)
			assert.Equal(t, tc.expected, checksum)

			// 文件未修改时结果不变
			again, ok := ComputeChecksum(path)
			require.True(t, ok)
			assert.Equal(t, checksum, again)
		})
	}
}

func TestComputeChecksumLargerThanBuffer(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789abcdef"), BufferSize/4+3)
	path := writeFile(t, content)

	sum := md5.Sum(content)
	checksum, ok := ComputeChecksum(path)
	require.True(t, ok)
	assert.Equal(t, renderDigest(sum[:]), checksum)
}

func TestComputeChecksumMissingFile(t *testing.T) {
	checksum, ok := ComputeChecksum(filepath.Join(t.TempDir(), "not_exist_file"))
	assert.False(t, ok)
	assert.Empty(t, checksum)

	_, err := ComputeFileMD5(filepath.Join(t.TempDir(), "not_exist_file"))
	assert.Error(t, err)
}

func TestComputeChecksumDirectory(t *testing.T) {
	_, ok := ComputeChecksum(t.TempDir())
	assert.False(t, ok)
}

func TestComputeReaderMD5(t *testing.T) {
	checksum, err := ComputeReaderMD5(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", checksum)
}

// 前导的0字节不会出现在结果中
func TestRenderDigestDropsLeadingZeros(t *testing.T) {
	sum := make([]byte, md5.Size)
	sum[0] = 0x00
	sum[1] = 0x0f
	sum[15] = 0x01

	rendered := renderDigest(sum)
	assert.Equal(t, "f"+strings.Repeat("0", 26)+"01", rendered)
	assert.Len(t, rendered, 29)

	assert.Equal(t, "0", renderDigest(make([]byte, md5.Size)))
	assert.Equal(t, "ff"+strings.Repeat("00", 15), renderDigest(append([]byte{0xff}, make([]byte, 15)...)))
}
