package relay

import (
	"regexp"

	"github.com/lk2023060901/msgrelay/pkg/util/merr"
	"github.com/lk2023060901/msgrelay/pkg/util/typeutil"
)

// AccountDirectory 保存已注册的用户名。非并发安全，由 Core 加锁访问。
type AccountDirectory struct {
	accounts typeutil.Set[string]
}

func NewAccountDirectory(usernames ...string) *AccountDirectory {
	return &AccountDirectory{accounts: typeutil.NewSet(usernames...)}
}

// Create 注册用户名，已存在时返回 ErrAccountAlreadyExists。
func (d *AccountDirectory) Create(username string) error {
	if d.accounts.Contain(username) {
		return merr.WrapErrAccountAlreadyExists(username)
	}
	d.accounts.Insert(username)
	return nil
}

// Delete 删除用户名，不存在时返回 ErrAccountNotFound。
func (d *AccountDirectory) Delete(username string) error {
	if !d.accounts.Contain(username) {
		return merr.WrapErrAccountNotFound(username)
	}
	d.accounts.Remove(username)
	return nil
}

func (d *AccountDirectory) Exists(username string) bool {
	return d.accounts.Contain(username)
}

func (d *AccountDirectory) Len() int {
	return d.accounts.Len()
}

// List 返回完整匹配 pattern 的用户名（升序）。pattern 为空时返回全部。
func (d *AccountDirectory) List(pattern string) ([]string, error) {
	if pattern == "" {
		return typeutil.Sorted(d.accounts), nil
	}
	re, err := compileFullMatch(pattern)
	if err != nil {
		return nil, err
	}
	return typeutil.SortedFunc(d.accounts, re.MatchString), nil
}

// compileFullMatch 将 pattern 锚定为整串匹配。
func compileFullMatch(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, merr.WrapErrAccountInvalidPattern(pattern, err)
	}
	return re, nil
}
