package catalog

// Default returns the catalog the service ships with.
func Default() (*Catalog, error) {
	return New(DefaultTasks(), DefaultGames(), DefaultAchievements(), DefaultQuests())
}

func DefaultTasks() []Task {
	return []Task{
		NewTask("Complete Daily Survey", "Answer five quick questions about your week.", 50, CategoryDaily, DifficultyEasy, "", "Start survey"),
		NewTask("Watch Promotional Video", "Watch a 30 second partner video.", 25, CategorySocial, DifficultyEasy, "", "Watch now"),
		NewTask("Download Mobile App", "Install the mobile app and sign in once.", 100, CategoryFeatured, DifficultyMedium, "", "Download"),
		NewTask("Social Media Follow", "Follow the official account.", 30, CategorySocial, DifficultyEasy, "", "Follow"),
		NewTask("Product Review", "Write an honest review of a partner product.", 75, CategoryWeb, DifficultyMedium, "", "Write review"),
	}
}

func DefaultGames() []Game {
	return []Game{
		{ID: "memory-match", Title: "Memory Match", BaseReward: 75, MaxScore: 1000, PassScore: 1},
		{ID: "number-rush", Title: "Number Rush", BaseReward: 100, MaxScore: 2000, PassScore: 1},
		{ID: "color-match", Title: "Color Match", BaseReward: 80, MaxScore: 1000, PassScore: 1},
		{ID: "coin-collector", Title: "Coin Collector", BaseReward: 120, MaxScore: 1000, PassScore: 1},
		{ID: "lucky-slots", Title: "Lucky Slots", BaseReward: 150, MaxScore: 1000, PassScore: 1},
		{ID: "word-builder", Title: "Word Builder", BaseReward: 95, MaxScore: 1000, PassScore: 1},
		{ID: "reflex-test", Title: "Reflex Test", BaseReward: 85, MaxScore: 1000, PassScore: 1},
		{ID: "trivia-challenge", Title: "Trivia Challenge", BaseReward: 90, MaxScore: 1000, PassScore: 1},
	}
}

func DefaultAchievements() []Achievement {
	game := func(id, gameID, title, desc, icon string, req Requirement, reward int64) Achievement {
		return Achievement{ID: id, GameID: gameID, Title: title, Description: desc, Icon: icon, Requirement: req, Reward: reward, Active: true}
	}
	global := func(id, title, desc, icon string, req Requirement, reward int64) Achievement {
		return game(id, "", title, desc, icon, req, reward)
	}

	return []Achievement{
		game("memory-match-first-win", "memory-match", "First Match", "Complete your first Memory Match game", "🎯", CompletionCount{Plays: 1}, 25),
		game("memory-match-speed-demon", "memory-match", "Speed Demon", "Complete Memory Match in under 60 seconds", "⚡", Time{Cmp: AtMost, Seconds: 60}, 50),
		game("memory-match-perfect-score", "memory-match", "Perfect Memory", "Score 100 points in Memory Match", "🏆", Score{Cmp: AtLeast, Value: 100}, 75),
		game("number-rush-first-win", "number-rush", "Math Master", "Complete your first Number Rush game", "🧮", CompletionCount{Plays: 1}, 25),
		game("number-rush-streak", "number-rush", "Streak Master", "Get a 10+ answer streak in Number Rush", "🔥", GameStreak{AtLeast: 10}, 60),
		game("color-match-first-win", "color-match", "Color Genius", "Complete your first Color Match game", "🌈", CompletionCount{Plays: 1}, 25),
		game("coin-collector-first-win", "coin-collector", "Coin Hunter", "Complete your first Coin Collector game", "💰", CompletionCount{Plays: 1}, 25),
		game("coin-collector-high-score", "coin-collector", "Coin Master", "Score 150+ points in Coin Collector", "👑", Score{Cmp: AtLeast, Value: 150}, 100),

		global("early_adopter", "Early Adopter", "Joined Dulpton Point in the first 30 days", "🌟", SignupWithin{Days: 30}, 500),
		global("first_hundred", "Getting Started", "Earned your first 100 DULP", "👶", TotalEarned{AtLeast: 100}, 50),
		global("first_thousand", "Rising Star", "Earned your first 1,000 DULP", "⭐", TotalEarned{AtLeast: 1000}, 100),
		global("five_thousand_club", "High Roller", "Earned 5,000 DULP total", "🎰", TotalEarned{AtLeast: 5000}, 500),
		global("grinder", "The Grinder", "Earned 10,000 DULP total", "⚡", TotalEarned{AtLeast: 10000}, 1000),
		global("big_earner", "Big Earner", "Earned 50,000 DULP total", "💰", TotalEarned{AtLeast: 50000}, 5000),
		global("dulp_millionaire", "DULP Millionaire", "Reached 100,000 total DULP earned", "💎", TotalEarned{AtLeast: 100000}, 10000),
		global("first_referral", "Recruiter", "Successfully referred your first friend", "🤝", Referrals{AtLeast: 1}, 200),
		global("referral_master", "Referral Master", "Successfully referred 5 friends", "👑", Referrals{AtLeast: 5}, 1000),
		global("social_master", "Social Influencer", "Successfully referred 10 friends", "👥", Referrals{AtLeast: 10}, 2000),
		global("network_king", "Network King", "Successfully referred 25 friends", "🏆", Referrals{AtLeast: 25}, 5000),
		global("first_week", "Week Warrior", "Maintained a 7-day login streak", "📅", LoginStreak{AtLeast: 7}, 300),
		global("two_week_streak", "Dedication", "Maintained a 14-day login streak", "🎯", LoginStreak{AtLeast: 14}, 750),
		global("streak_warrior", "Streak Master", "Maintained a 30-day login streak", "🔥", LoginStreak{AtLeast: 30}, 3000),
		global("streak_legend", "Streak Legend", "Maintained a 100-day login streak", "🌟", LoginStreak{AtLeast: 100}, 10000),
		global("task_starter", "Task Starter", "Completed 10 tasks", "🎪", TasksCompleted{AtLeast: 10}, 200),
		global("task_enthusiast", "Task Enthusiast", "Completed 50 tasks", "🎨", TasksCompleted{AtLeast: 50}, 750),
		global("task_master", "Task Master", "Completed 100 tasks", "🎯", TasksCompleted{AtLeast: 100}, 1500),
		global("task_legend", "Task Legend", "Completed 500 tasks", "🏅", TasksCompleted{AtLeast: 500}, 7500),
		global("spin_master", "Lucky Spinner", "Used the daily spin wheel 30 times", "🎡", SpinsCompleted{AtLeast: 30}, 1000),
		global("all_rounder", "All Rounder", "Completed 25 tasks, 5 spins and 10 games", "🧭",
			Expression{Source: "tasks_completed >= 25 && spins_completed >= 5 && games_played >= 10"}, 750),
	}
}

func DefaultQuests() []Quest {
	return []Quest{
		{ID: "daily_earn_500", Title: "Daily Earner", Description: "Earn 500 DULP today", Period: Daily, Type: QuestEarn, Target: 500, Reward: 100, XPReward: 50},
		{ID: "daily_complete_5_tasks", Title: "Task Crusher", Description: "Complete 5 tasks today", Period: Daily, Type: QuestCompleteTasks, Target: 5, Reward: 200, XPReward: 75},
		{ID: "daily_spin_wheel", Title: "Lucky Day", Description: "Use the daily spin wheel", Period: Daily, Type: QuestSpinWheel, Target: 1, Reward: 50, XPReward: 25},
		{ID: "weekly_earn_3000", Title: "Weekly Grinder", Description: "Earn 3,000 DULP this week", Period: Weekly, Type: QuestEarn, Target: 3000, Reward: 500, XPReward: 200},
		{ID: "weekly_complete_25_tasks", Title: "Task Master", Description: "Complete 25 tasks this week", Period: Weekly, Type: QuestCompleteTasks, Target: 25, Reward: 750, XPReward: 300},
		{ID: "weekly_refer_friend", Title: "Social Butterfly", Description: "Refer 1 friend this week", Period: Weekly, Type: QuestReferFriends, Target: 1, Reward: 1000, XPReward: 400},
		{ID: "weekly_login_streak", Title: "Consistency King", Description: "Maintain a 7-day login streak", Period: Weekly, Type: QuestLoginStreak, Target: 7, Reward: 600, XPReward: 250},
	}
}
