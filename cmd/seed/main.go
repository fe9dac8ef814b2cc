package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/course-referral/internal/config"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/payout"
	"github.com/course-referral/internal/provider"
	"github.com/course-referral/internal/queue"
	"github.com/course-referral/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

const seedPassword = "Seed-Passw0rd"

func main() {
	var (
		agents      int
		students    int
		paymentsPer int
		seed        int64
	)
	flag.IntVar(&agents, "agents", 5, "代理数量")
	flag.IntVar(&students, "students", 4, "每个代理推荐的学员数量")
	flag.IntVar(&paymentsPer, "payments", 2, "每个学员的课程支付笔数")
	flag.Int64Var(&seed, "seed", 42, "随机种子（相同种子生成相同数据）")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 种子数据同步生成佣金，不经过队列与外部网关
	queueClient, _ := queue.NewClient(nil)
	c := provider.NewContainerWith(cfg, models.DB, queueClient, payout.NewRegistry())
	faker := gofakeit.New(seed)

	created := 0
	for i := 0; i < agents; i++ {
		agent, err := seedAgent(c, faker)
		if err != nil {
			stdLog.Printf("Failed to seed agent: %v", err)
			continue
		}
		stdLog.Printf("Created agent: %s (code %s)", agent.Email, derefString(agent.ReferralCode))

		for j := 0; j < students; j++ {
			student, _, _, err := c.UserAuthService.Register(service.RegisterInput{
				Email:        faker.Email(),
				Password:     seedPassword,
				DisplayName:  faker.Name(),
				ReferralCode: derefString(agent.ReferralCode),
			})
			if err != nil {
				stdLog.Printf("Failed to seed student: %v", err)
				continue
			}
			for k := 0; k < paymentsPer; k++ {
				agentID := agent.ID
				amount := decimal.NewFromFloat(faker.Price(19, 499)).Round(2)
				_, err := c.PaymentEventService.HandlePaymentCompleted(service.PaymentCompletedEvent{
					PaymentID: "seed_" + faker.UUID(),
					UserID:    student.ID,
					AgentID:   &agentID,
					Amount:    amount,
					RequestID: "seed",
				})
				if err != nil {
					stdLog.Printf("Failed to seed payment for %s: %v", student.Email, err)
					continue
				}
				created++
			}
		}
	}
	stdLog.Printf("Seed finished: %d payments recorded, login password for all users is %q", created, seedPassword)
}

func seedAgent(c *provider.Container, faker *gofakeit.Faker) (*models.User, error) {
	user, _, _, err := c.UserAuthService.Register(service.RegisterInput{
		Email:       faker.Email(),
		Password:    seedPassword,
		DisplayName: faker.Name(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := c.UserAuthService.ApplyAgent(user.ID); err != nil {
		return nil, err
	}
	agent, err := c.UserAdminService.ApproveAgent(user.ID)
	if err != nil {
		return nil, err
	}

	// 一半代理的收款信息已验证，便于演示提现流程
	_, err = c.BankDetailService.SubmitBankDetails(agent.ID, service.BankDetailsInput{
		BankName:          faker.Company() + " Bank",
		AccountHolderName: agent.DisplayName,
		AccountNumber:     faker.AchAccount(),
		RoutingNumber:     faker.AchRouting(),
		PaypalEmail:       strings.ToLower(faker.Email()),
	})
	if err != nil {
		return nil, fmt.Errorf("submit bank details: %w", err)
	}
	if faker.Bool() {
		if _, err := c.BankDetailService.Verify(agent.ID, service.VerifyBankDetailsInput{
			IsVerified: true,
			Notes:      "seeded",
		}); err != nil {
			return nil, fmt.Errorf("verify bank details: %w", err)
		}
	}
	return agent, nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
