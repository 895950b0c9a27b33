package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/soaringjerry/qforms/internal/questionnaire"
	"github.com/soaringjerry/qforms/internal/services"
)

// collection names
const (
	collectionQuestionnaires = "questionnaires"
	collectionAnswerSets     = "answer-sets"
	collectionUsers          = "users"
)

type MongoConfig struct {
	URI              string `yaml:"uri"`
	DBNamePrefix     string `yaml:"db_name_prefix"`
	Timeout          int    `yaml:"timeout"`
	IdleConnTimeout  int    `yaml:"idle_conn_timeout"`
	MaxPoolSize      uint64 `yaml:"max_pool_size"`
	RunIndexCreation bool   `yaml:"run_index_creation"`
}

type MongoStore struct {
	DBClient     *mongo.Client
	timeout      int
	DBNamePrefix string
}

var (
	_ services.QuestionnaireStore = (*MongoStore)(nil)
	_ services.UserStore          = (*MongoStore)(nil)
)

func NewMongoStore(configs MongoConfig) (*MongoStore, error) {
	if configs.Timeout <= 0 {
		configs.Timeout = 10
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(configs.URI)
	if configs.IdleConnTimeout > 0 {
		opts.SetMaxConnIdleTime(time.Duration(configs.IdleConnTimeout) * time.Second)
	}
	if configs.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(configs.MaxPoolSize)
	}
	dbClient, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	defer pingCancel()
	if err := dbClient.Ping(pingCtx, nil); err != nil {
		_ = dbClient.Disconnect(context.Background())
		return nil, err
	}

	st := &MongoStore{
		DBClient:     dbClient,
		timeout:      configs.Timeout,
		DBNamePrefix: configs.DBNamePrefix,
	}
	if configs.RunIndexCreation {
		st.ensureIndexes()
	}
	return st, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := s.getContext(context.Background())
	defer cancel()
	return s.DBClient.Disconnect(ctx)
}

func (s *MongoStore) getDBName() string {
	return s.DBNamePrefix + "qforms"
}

func (s *MongoStore) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(s.timeout)*time.Second)
}

func (s *MongoStore) collectionQuestionnaires() *mongo.Collection {
	return s.DBClient.Database(s.getDBName()).Collection(collectionQuestionnaires)
}

func (s *MongoStore) collectionAnswerSets() *mongo.Collection {
	return s.DBClient.Database(s.getDBName()).Collection(collectionAnswerSets)
}

func (s *MongoStore) collectionUsers() *mongo.Collection {
	return s.DBClient.Database(s.getDBName()).Collection(collectionUsers)
}

func (s *MongoStore) ensureIndexes() {
	slog.Debug("Ensuring indexes for qforms DB")
	ctx, cancel := s.getContext(context.Background())
	defer cancel()

	if _, err := s.collectionQuestionnaires().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: 1}},
	}); err != nil {
		slog.Error("Error creating index for questionnaires", slog.String("error", err.Error()))
	}
	if _, err := s.collectionAnswerSets().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "questionnaireId", Value: 1}, {Key: "submittedAt", Value: 1}},
	}); err != nil {
		slog.Error("Error creating index for answer sets", slog.String("error", err.Error()))
	}
	if _, err := s.collectionUsers().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		slog.Error("Error creating index for users", slog.String("error", err.Error()))
	}
}

type ruleDoc struct {
	Name string `bson:"name"`
	Args []any  `bson:"args,omitempty"`
}

type questionDoc struct {
	Number           int       `bson:"number"`
	Prompt           string    `bson:"prompt"`
	Type             string    `bson:"type"`
	Options          []string  `bson:"options,omitempty"`
	AllowOtherOption bool      `bson:"allowOtherOption"`
	Rules            []ruleDoc `bson:"rules,omitempty"`
}

type questionnaireDoc struct {
	ID            string        `bson:"_id"`
	OwnerID       string        `bson:"ownerId"`
	Title         string        `bson:"title"`
	Description   string        `bson:"description"`
	AcceptAnswers bool          `bson:"acceptAnswers"`
	Questions     []questionDoc `bson:"questions"`
	AnswerSetIDs  []string      `bson:"answerSetIds"`
	Version       int           `bson:"version"`
	CreatedAt     time.Time     `bson:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt"`
}

type answerDoc struct {
	QuestionNumber int `bson:"questionNumber"`
	Value          any `bson:"value"`
}

type answerSetDoc struct {
	ID              string      `bson:"_id"`
	QuestionnaireID string      `bson:"questionnaireId"`
	IssuerID        string      `bson:"issuerId"`
	SubmittedAt     time.Time   `bson:"submittedAt"`
	Answers         []answerDoc `bson:"answers"`
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	PassHash  []byte    `bson:"passHash"`
	Admin     bool      `bson:"admin"`
	CreatedAt time.Time `bson:"createdAt"`
}

func questionDocs(defs []questionnaire.QuestionDef) []questionDoc {
	out := make([]questionDoc, 0, len(defs))
	for _, d := range defs {
		qd := questionDoc{
			Number:           d.Number,
			Prompt:           d.Prompt,
			Type:             d.Type.String(),
			Options:          d.Options,
			AllowOtherOption: d.AllowOtherOption,
		}
		for _, rc := range d.Rules {
			rd := ruleDoc{Name: rc.Name}
			for _, a := range rc.Args {
				rd.Args = append(rd.Args, a.Any())
			}
			qd.Rules = append(qd.Rules, rd)
		}
		out = append(out, qd)
	}
	return out
}

func toQuestionnaireDoc(rec *questionnaire.Record) questionnaireDoc {
	ids := rec.AnswerSetIDs
	if ids == nil {
		ids = []string{}
	}
	return questionnaireDoc{
		ID:            rec.ID,
		OwnerID:       rec.OwnerID,
		Title:         rec.Title,
		Description:   rec.Description,
		AcceptAnswers: rec.AcceptAnswers,
		Questions:     questionDocs(rec.Questions),
		AnswerSetIDs:  ids,
		Version:       rec.Version,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// plain unwraps BSON arrays so the engine converters see []any.
func plain(x any) any {
	if a, ok := x.(primitive.A); ok {
		return []any(a)
	}
	return x
}

func (d questionnaireDoc) record() (*questionnaire.Record, error) {
	rec := &questionnaire.Record{
		ID:            d.ID,
		OwnerID:       d.OwnerID,
		Title:         d.Title,
		Description:   d.Description,
		AcceptAnswers: d.AcceptAnswers,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if len(d.AnswerSetIDs) > 0 {
		rec.AnswerSetIDs = append([]string(nil), d.AnswerSetIDs...)
	}
	for _, qd := range d.Questions {
		t, err := questionnaire.ParseQuestionType(qd.Type)
		if err != nil {
			return nil, fmt.Errorf("questionnaire %s: question %d: %w", d.ID, qd.Number, err)
		}
		def := questionnaire.QuestionDef{
			Number:           qd.Number,
			Prompt:           qd.Prompt,
			Type:             t,
			Options:          qd.Options,
			AllowOtherOption: qd.AllowOtherOption,
		}
		for _, rd := range qd.Rules {
			rc := questionnaire.RuleConfig{Name: rd.Name}
			for _, raw := range rd.Args {
				a, err := questionnaire.ArgFromAny(raw)
				if err != nil {
					return nil, fmt.Errorf("questionnaire %s: rule %s: %w", d.ID, rd.Name, err)
				}
				rc.Args = append(rc.Args, a)
			}
			def.Rules = append(def.Rules, rc)
		}
		rec.Questions = append(rec.Questions, def)
	}
	return rec, nil
}

func toAnswerSetDoc(set *questionnaire.AnswerSet) answerSetDoc {
	doc := answerSetDoc{
		ID:              set.ID,
		QuestionnaireID: set.QuestionnaireID,
		IssuerID:        set.IssuerID,
		SubmittedAt:     set.SubmittedAt,
		Answers:         make([]answerDoc, 0, len(set.Answers)),
	}
	for _, a := range set.Answers {
		doc.Answers = append(doc.Answers, answerDoc{QuestionNumber: a.QuestionNumber, Value: a.Value.Any()})
	}
	return doc
}

func (d answerSetDoc) answerSet() (*questionnaire.AnswerSet, error) {
	set := &questionnaire.AnswerSet{
		ID:              d.ID,
		QuestionnaireID: d.QuestionnaireID,
		IssuerID:        d.IssuerID,
		SubmittedAt:     d.SubmittedAt.UTC(),
		Answers:         make([]questionnaire.Answer, 0, len(d.Answers)),
	}
	for _, ad := range d.Answers {
		v, err := questionnaire.FromAny(plain(ad.Value))
		if err != nil {
			return nil, fmt.Errorf("answer set %s: question %d: %w", d.ID, ad.QuestionNumber, err)
		}
		set.Answers = append(set.Answers, questionnaire.Answer{QuestionNumber: ad.QuestionNumber, Value: v})
	}
	return set, nil
}

func (s *MongoStore) InsertQuestionnaire(ctx context.Context, rec *questionnaire.Record) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	_, err := s.collectionQuestionnaires().InsertOne(ctx, toQuestionnaireDoc(rec))
	return err
}

func (s *MongoStore) GetQuestionnaire(ctx context.Context, id string) (*questionnaire.Record, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	var doc questionnaireDoc
	if err := s.collectionQuestionnaires().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.record()
}

func (s *MongoStore) ListQuestionnairesByOwner(ctx context.Context, ownerID string) ([]*questionnaire.Record, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collectionQuestionnaires().Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*questionnaire.Record
	for cursor.Next(ctx) {
		var doc questionnaireDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode questionnaire of owner %s: %w", ownerID, err)
		}
		rec, err := doc.record()
		if err != nil {
			return nil, fmt.Errorf("questionnaire %s: %w", doc.ID, err)
		}
		out = append(out, rec)
	}
	return out, cursor.Err()
}

// refusal explains why a guarded write matched no document.
func (s *MongoStore) refusal(ctx context.Context, id string, expectedVersion int, g guard) error {
	var doc struct {
		Version       int      `bson:"version"`
		AcceptAnswers bool     `bson:"acceptAnswers"`
		AnswerSetIDs  []string `bson:"answerSetIds"`
	}
	err := s.collectionQuestionnaires().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return services.ErrQuestionnaireNotFound
	case err != nil:
		return err
	case doc.Version != expectedVersion:
		return services.ErrConcurrentUpdate
	case g == guardOpen && !doc.AcceptAnswers:
		return services.ErrAnswersNotAccepted
	case g == guardUnanswered && len(doc.AnswerSetIDs) > 0:
		return services.ErrHasAnswers
	}
	return services.ErrConcurrentUpdate
}

func unansweredFilter(id string, expectedVersion int) bson.M {
	return bson.M{
		"_id":            id,
		"version":        expectedVersion,
		"answerSetIds.0": bson.M{"$exists": false},
	}
}

func (s *MongoStore) UpdateQuestionnaire(ctx context.Context, rec *questionnaire.Record, expectedVersion int) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	update := bson.M{"$set": bson.M{
		"title":         rec.Title,
		"description":   rec.Description,
		"acceptAnswers": rec.AcceptAnswers,
		"questions":     questionDocs(rec.Questions),
		"version":       rec.Version,
		"updatedAt":     rec.UpdatedAt,
	}}
	res, err := s.collectionQuestionnaires().UpdateOne(ctx, unansweredFilter(rec.ID, expectedVersion), update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return s.refusal(ctx, rec.ID, expectedVersion, guardUnanswered)
}

func (s *MongoStore) SetAcceptAnswers(ctx context.Context, id string, accept bool, expectedVersion int) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	update := bson.M{
		"$set": bson.M{"acceptAnswers": accept, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	res, err := s.collectionQuestionnaires().UpdateOne(ctx, bson.M{"_id": id, "version": expectedVersion}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return s.refusal(ctx, id, expectedVersion, guardVersion)
}

func (s *MongoStore) DeleteQuestionnaire(ctx context.Context, id string, expectedVersion int) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	res, err := s.collectionQuestionnaires().DeleteOne(ctx, unansweredFilter(id, expectedVersion))
	if err != nil {
		return err
	}
	if res.DeletedCount > 0 {
		return nil
	}
	return s.refusal(ctx, id, expectedVersion, guardUnanswered)
}

// InsertAnswerSet links the set to its questionnaire with a guarded push,
// then stores the set. The link is pulled again if the insert fails.
func (s *MongoStore) InsertAnswerSet(ctx context.Context, set *questionnaire.AnswerSet, expectedVersion int) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	filter := bson.M{"_id": set.QuestionnaireID, "version": expectedVersion, "acceptAnswers": true}
	res, err := s.collectionQuestionnaires().UpdateOne(ctx, filter, bson.M{"$push": bson.M{"answerSetIds": set.ID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.refusal(ctx, set.QuestionnaireID, expectedVersion, guardOpen)
	}
	if _, err := s.collectionAnswerSets().InsertOne(ctx, toAnswerSetDoc(set)); err != nil {
		if _, perr := s.collectionQuestionnaires().UpdateOne(ctx,
			bson.M{"_id": set.QuestionnaireID},
			bson.M{"$pull": bson.M{"answerSetIds": set.ID}},
		); perr != nil {
			slog.Error("Error unlinking answer set after failed insert",
				slog.String("answerSetId", set.ID), slog.String("error", perr.Error()))
		}
		return err
	}
	return nil
}

func (s *MongoStore) ListAnswerSets(ctx context.Context, questionnaireID string) ([]*questionnaire.AnswerSet, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collectionAnswerSets().Find(ctx, bson.M{"questionnaireId": questionnaireID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*questionnaire.AnswerSet
	for cursor.Next(ctx) {
		var doc answerSetDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		set, err := doc.answerSet()
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, cursor.Err()
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*services.User, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	var doc userDoc
	err := s.collectionUsers().FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &services.User{
		ID:        doc.ID,
		Email:     doc.Email,
		PassHash:  doc.PassHash,
		Admin:     doc.Admin,
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}

func (s *MongoStore) InsertUser(ctx context.Context, u *services.User) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	_, err := s.collectionUsers().InsertOne(ctx, userDoc{
		ID:        u.ID,
		Email:     strings.ToLower(strings.TrimSpace(u.Email)),
		PassHash:  u.PassHash,
		Admin:     u.Admin,
		CreatedAt: u.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return services.NewConflictError("email exists")
	}
	return err
}
