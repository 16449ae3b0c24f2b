// Package docs 由 controller 中的 swag 注释生成；修改接口注释后执行 swag init 更新
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API支持",
            "email": "support@swagger.io"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "检查数据库与 Redis 连接",
                "produces": ["application/json"],
                "tags": ["系统"],
                "summary": "健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/homework/courses/{courseId}/problemsets/{psetId}/metadata": {
            "get": {
                "description": "每题分值与作答次数上限，answers=true 时附带标准答案；没有标准答案的题目不返回",
                "produces": ["application/json"],
                "tags": ["作业"],
                "summary": "习题集元数据",
                "parameters": [
                    {"type": "integer", "description": "课程ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "integer", "description": "习题集ID", "name": "psetId", "in": "path", "required": true},
                    {"type": "string", "description": "题目ID列表，逗号分隔", "name": "questions", "in": "query", "required": true},
                    {"type": "boolean", "description": "是否返回答案", "name": "answers", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/util.Response"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/service.ProblemsetMetadata"}}}
                            ]
                        }
                    },
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/homework/courses/{courseId}/problemsets/{psetId}/report": {
            "get": {
                "description": "按题列出学生作答并汇总每个学生的总分；指定 student_id 时只含该学生",
                "produces": ["application/json"],
                "tags": ["作业"],
                "summary": "习题集报表",
                "parameters": [
                    {"type": "integer", "description": "课程ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "integer", "description": "习题集ID", "name": "psetId", "in": "path", "required": true},
                    {"type": "string", "description": "题目ID列表，逗号分隔", "name": "questions", "in": "query", "required": true},
                    {"type": "string", "description": "学生ID", "name": "student_id", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/util.Response"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/service.Report"}}}
                            ]
                        }
                    },
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/homework/courses/{courseId}/problemsets/{psetId}/questions/{questionId}/answer": {
            "get": {
                "description": "返回学生的作答记录，student_id 缺省时返回标准答案；查询失败时返回空值",
                "produces": ["application/json"],
                "tags": ["作业"],
                "summary": "获取作答",
                "parameters": [
                    {"type": "integer", "description": "课程ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "integer", "description": "习题集ID", "name": "psetId", "in": "path", "required": true},
                    {"type": "integer", "description": "题目ID", "name": "questionId", "in": "path", "required": true},
                    {"type": "string", "description": "学生ID，默认 -", "name": "student_id", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/util.Response"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/service.AnswerKeyInfo"}}}
                            ]
                        }
                    }
                }
            }
        },
        "/homework/courses/{courseId}/problemsets/{psetId}/questions/{questionId}/answer-key": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["作业"],
                "summary": "设置标准答案",
                "parameters": [
                    {"type": "integer", "description": "课程ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "integer", "description": "习题集ID", "name": "psetId", "in": "path", "required": true},
                    {"type": "integer", "description": "题目ID", "name": "questionId", "in": "path", "required": true},
                    {"description": "标准答案", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controller.AnswerKeyReq"}}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/util.Response"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/model.HomeworkRecord"}}}
                            ]
                        }
                    },
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/homework/courses/{courseId}/problemsets/{psetId}/questions/{questionId}/check": {
            "post": {
                "description": "将答案与标准答案比较；record 缺省为 true 时写入学生记录",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["作业"],
                "summary": "评测作答",
                "parameters": [
                    {"type": "integer", "description": "课程ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "integer", "description": "习题集ID", "name": "psetId", "in": "path", "required": true},
                    {"type": "integer", "description": "题目ID", "name": "questionId", "in": "path", "required": true},
                    {"description": "作答", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controller.CheckAnswerReq"}}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/util.Response"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/service.CheckResult"}}}
                            ]
                        }
                    },
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/util.Response"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        }
    },
    "definitions": {
        "controller.AnswerKeyReq": {
            "type": "object",
            "required": ["answer"],
            "properties": {
                "answer": {"type": "string"},
                "explanation": {"type": "string"},
                "max_attempts": {"type": "integer"},
                "score": {"type": "number"}
            }
        },
        "controller.CheckAnswerReq": {
            "type": "object",
            "required": ["answer", "student_id"],
            "properties": {
                "answer": {"type": "string"},
                "record": {"type": "boolean"},
                "student_id": {"type": "string"}
            }
        },
        "model.HomeworkRecord": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "attempts": {"type": "integer"},
                "course_id": {"type": "integer"},
                "create_time": {"type": "string"},
                "explanation": {"type": "string"},
                "problemset_id": {"type": "integer"},
                "question_gid": {"type": "string"},
                "question_id": {"type": "integer"},
                "score": {"type": "number"},
                "state": {"type": "integer", "enum": [-1, 0, 1]},
                "student_id": {"type": "string"}
            }
        },
        "service.AnswerKeyInfo": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "attempts": {"type": "integer"},
                "explanation": {"type": "string"},
                "score": {"type": "number"}
            }
        },
        "service.CheckResult": {
            "type": "object",
            "properties": {
                "explanation": {"type": "string"},
                "max_attempts": {"type": "integer"},
                "max_score": {"type": "number"},
                "score": {"type": "number"},
                "state": {"type": "integer", "enum": [-1, 0, 1]},
                "used_attempts": {"type": "integer"}
            }
        },
        "service.ProblemsetMetadata": {
            "type": "object",
            "properties": {
                "course_id": {"type": "integer"},
                "max_score": {"type": "number"},
                "problemset_id": {"type": "integer"},
                "questions": {"type": "array", "items": {"$ref": "#/definitions/service.QuestionMetadata"}}
            }
        },
        "service.QuestionMetadata": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "attempts": {"type": "integer"},
                "id": {"type": "integer"},
                "score": {"type": "number"}
            }
        },
        "service.QuestionReport": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "max_attempts": {"type": "integer"},
                "max_score": {"type": "number"},
                "students": {"type": "array", "items": {"$ref": "#/definitions/service.StudentAnswer"}}
            }
        },
        "service.Report": {
            "type": "object",
            "properties": {
                "course_id": {"type": "integer"},
                "max_score": {"type": "number"},
                "problemset_id": {"type": "integer"},
                "questions": {"type": "array", "items": {"$ref": "#/definitions/service.QuestionReport"}},
                "scores": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "service.StudentAnswer": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "attempts": {"type": "integer"},
                "evaluation": {"type": "integer", "enum": [-1, 0, 1]},
                "id": {"type": "string"},
                "score": {"type": "number"}
            }
        },
        "util.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Course Homework API",
	Description:      "课程作业评测服务：记录学生作答、判分并生成习题集报表。",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
