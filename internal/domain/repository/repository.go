// Package repository 定义数据访问层接口
package repository

import "errors"

// ErrStoreFull 存储达到容量上限，调用方可以淘汰旧条目后重试
var ErrStoreFull = errors.New("store is full")
