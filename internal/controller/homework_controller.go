package controller

import (
	"course_homework_backend/internal/model"
	"course_homework_backend/internal/service"
	"course_homework_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type HomeworkController struct {
	Service *service.HomeworkService
}

func NewHomeworkController(svc *service.HomeworkService) *HomeworkController {
	return &HomeworkController{Service: svc}
}

type CheckAnswerReq struct {
	StudentID string  `json:"student_id" binding:"required"`
	Answer    *string `json:"answer" binding:"required"`
	// Record 缺省为 true；false 时仅预览评测结果
	Record *bool `json:"record"`
}

type AnswerKeyReq struct {
	Answer      *string         `json:"answer" binding:"required"`
	Score       decimal.Decimal `json:"score"`
	MaxAttempts int             `json:"max_attempts"`
	Explanation *string         `json:"explanation"`
}

func questionRef(ctx *gin.Context) (model.QuestionRef, error) {
	var ref model.QuestionRef
	var err error
	if ref.CourseID, err = util.ParseID(ctx.Param("courseId")); err != nil {
		return ref, err
	}
	if ref.ProblemsetID, err = util.ParseID(ctx.Param("psetId")); err != nil {
		return ref, err
	}
	if ref.QuestionID, err = util.ParseID(ctx.Param("questionId")); err != nil {
		return ref, err
	}
	return ref, nil
}

func problemsetIDs(ctx *gin.Context) (int64, int64, []int64, error) {
	courseID, err := util.ParseID(ctx.Param("courseId"))
	if err != nil {
		return 0, 0, nil, err
	}
	psetID, err := util.ParseID(ctx.Param("psetId"))
	if err != nil {
		return 0, 0, nil, err
	}
	questionIDs, err := util.ParseIDList(ctx.Query(util.QueryParamQuestions))
	if err != nil {
		return 0, 0, nil, err
	}
	return courseID, psetID, questionIDs, nil
}

// @Summary 评测作答
// @Description 将答案与标准答案比较；record 缺省为 true 时写入学生记录
// @Tags 作业
// @Accept json
// @Produce json
// @Param courseId path int true "课程ID"
// @Param psetId path int true "习题集ID"
// @Param questionId path int true "题目ID"
// @Param request body CheckAnswerReq true "作答"
// @Success 200 {object} util.Response{data=service.CheckResult}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /homework/courses/{courseId}/problemsets/{psetId}/questions/{questionId}/check [post]
func (c *HomeworkController) CheckAnswer(ctx *gin.Context) {
	ref, err := questionRef(ctx)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	var req CheckAnswerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	record := req.Record == nil || *req.Record

	res, err := c.Service.CheckAnswer(ctx.Request.Context(), ref, req.StudentID, *req.Answer, record)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 获取作答
// @Description 返回学生的作答记录，student_id 缺省时返回标准答案；查询失败时返回空值
// @Tags 作业
// @Produce json
// @Param courseId path int true "课程ID"
// @Param psetId path int true "习题集ID"
// @Param questionId path int true "题目ID"
// @Param student_id query string false "学生ID，默认 -"
// @Success 200 {object} util.Response{data=service.AnswerKeyInfo}
// @Router /homework/courses/{courseId}/problemsets/{psetId}/questions/{questionId}/answer [get]
func (c *HomeworkController) GetAnswer(ctx *gin.Context) {
	ref, err := questionRef(ctx)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	studentID := ctx.DefaultQuery("student_id", model.AnswerKey)
	util.Success(ctx, c.Service.GetAnswer(ctx.Request.Context(), ref, studentID))
}

// @Summary 设置标准答案
// @Tags 作业
// @Accept json
// @Produce json
// @Param courseId path int true "课程ID"
// @Param psetId path int true "习题集ID"
// @Param questionId path int true "题目ID"
// @Param request body AnswerKeyReq true "标准答案"
// @Success 200 {object} util.Response{data=model.HomeworkRecord}
// @Failure 400 {object} util.Response
// @Router /homework/courses/{courseId}/problemsets/{psetId}/questions/{questionId}/answer-key [put]
func (c *HomeworkController) SetAnswerKey(ctx *gin.Context) {
	ref, err := questionRef(ctx)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	var req AnswerKeyReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	rec, err := c.Service.SetAnswerKey(ctx.Request.Context(), ref, service.AnswerKeyParams{
		Answer:      *req.Answer,
		Score:       req.Score,
		MaxAttempts: req.MaxAttempts,
		Explanation: req.Explanation,
	})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, rec)
}

// @Summary 习题集报表
// @Description 按题列出学生作答并汇总每个学生的总分；指定 student_id 时只含该学生
// @Tags 作业
// @Produce json
// @Param courseId path int true "课程ID"
// @Param psetId path int true "习题集ID"
// @Param questions query string true "题目ID列表，逗号分隔"
// @Param student_id query string false "学生ID"
// @Success 200 {object} util.Response{data=service.Report}
// @Failure 400 {object} util.Response
// @Router /homework/courses/{courseId}/problemsets/{psetId}/report [get]
func (c *HomeworkController) GetReport(ctx *gin.Context) {
	courseID, psetID, questionIDs, err := problemsetIDs(ctx)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	var studentID *string
	if s, ok := ctx.GetQuery("student_id"); ok && s != "" {
		studentID = &s
	}

	report, err := c.Service.GetReport(ctx.Request.Context(), courseID, psetID, questionIDs, studentID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 习题集元数据
// @Description 每题分值与作答次数上限，answers=true 时附带标准答案；没有标准答案的题目不返回
// @Tags 作业
// @Produce json
// @Param courseId path int true "课程ID"
// @Param psetId path int true "习题集ID"
// @Param questions query string true "题目ID列表，逗号分隔"
// @Param answers query bool false "是否返回答案"
// @Success 200 {object} util.Response{data=service.ProblemsetMetadata}
// @Failure 400 {object} util.Response
// @Router /homework/courses/{courseId}/problemsets/{psetId}/metadata [get]
func (c *HomeworkController) GetProblemsetMetadata(ctx *gin.Context) {
	courseID, psetID, questionIDs, err := problemsetIDs(ctx)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	sendAnswers, err := strconv.ParseBool(ctx.DefaultQuery("answers", "false"))
	if err != nil {
		util.BadRequest(ctx, "answers must be a boolean")
		return
	}

	meta, err := c.Service.GetProblemsetMetadata(ctx.Request.Context(), courseID, psetID, questionIDs, sendAnswers)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, meta)
}
