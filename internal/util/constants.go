package util

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// QueryParamQuestions 报表与元数据接口中题目列表的查询参数
const QueryParamQuestions = "questions"
