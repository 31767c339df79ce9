package enum

// StoreDriver 表示購物車的儲存後端
type StoreDriver string

const (
	StoreDriverMemory   StoreDriver = "memory"
	StoreDriverFile     StoreDriver = "file"
	StoreDriverRedis    StoreDriver = "redis"
	StoreDriverPostgres StoreDriver = "postgres"
)

func (d StoreDriver) Valid() bool {
	switch d {
	case StoreDriverMemory, StoreDriverFile, StoreDriverRedis, StoreDriverPostgres:
		return true
	}
	return false
}
