package client

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultServerAddress 地址文件缺失时写入的默认值
const DefaultServerAddress = "127.0.0.1"

// ServerAddressFromFile 读取文件中的第一个空白分隔字段作为服务端地址；
// 文件不存在或为空时写入并返回默认地址
func ServerAddressFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "read %s", path)
	}
	if fields := strings.Fields(string(data)); len(fields) > 0 {
		return fields[0], nil
	}
	if err := os.WriteFile(path, []byte(DefaultServerAddress), 0o644); err != nil {
		return DefaultServerAddress, errors.Wrapf(err, "write %s", path)
	}
	return DefaultServerAddress, nil
}
