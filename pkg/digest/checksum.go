// Package digest 计算文件内容的MD5指纹，只用于变更检测，不用于安全场景
package digest

import (
	"bufio"
	"crypto/md5"
	"fmt"
	"io"
	"math/big"
	"os"
)

// BufferSize 每次读取的字节数，不影响计算结果
const BufferSize = 1024

// ComputeChecksum 计算文件的MD5指纹，文件不存在或读取失败时返回false
func ComputeChecksum(path string) (string, bool) {
	checksum, err := ComputeFileMD5(path)
	if err != nil {
		return "", false
	}
	return checksum, true
}

// ComputeFileMD5 计算文件的MD5指纹，错误会返回给调用者
func ComputeFileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file failed: %w", err)
	}
	defer f.Close()

	return ComputeReaderMD5(bufio.NewReaderSize(f, BufferSize))
}

// ComputeReaderMD5 按块读取r并计算MD5指纹
//
// 摘要按大端无符号整数转为16进制，前导的0会被省略，
// 所以结果可能短于32个字符。
func ComputeReaderMD5(r io.Reader) (string, error) {
	h := md5.New()
	buffer := make([]byte, BufferSize)
	for {
		n, err := r.Read(buffer)
		if n > 0 {
			h.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read failed: %w", err)
		}
	}

	return renderDigest(h.Sum(nil)), nil
}

func renderDigest(sum []byte) string {
	return new(big.Int).SetBytes(sum).Text(16)
}
