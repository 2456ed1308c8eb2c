package bot

// Reply texts in the okan register.
const (
	greetingText = "友達追加ありがとう！\nこれから毎日の生活がちょっと楽になるように手伝うで！\n\nまず、いくつか設定をさせてな。\n天気予報で使う地域はどこにする？\n（例：東京都豊島区）"

	locationNotFoundFmt = "ごめん、「%s」がどこか分からへんかったわ。もう一回教えてくれる？"
	locationSavedFmt    = "おおきに！地域は「%s」で覚えたで。\n\n次は、毎朝の通知は何時がええ？\n（例：朝8時、7:30）"
	prefectureAskFmt    = "「%s」って名前の場所がいくつかあるみたいやわ。どっちの都道府県？\n%s"
	prefectureRetryFmt  = "ごめん、さっき出した中から選んでな。\n%s"

	timeSavedCombinedFmt = "了解！朝の通知は「%s」やね。\n\n次は、通勤で使う駅を教えてくれる？\n（例：池袋から新宿）"
	timeSavedSplitFmt    = "了解！朝の通知は「%s」やね。\n\n次は、通勤で乗る駅（出発側）を教えてくれる？\n（例：池袋）"

	routeFormatHint     = "ごめん、うまく聞き取れへんかったわ。「〇〇から△△」の形で教えてくれる？"
	stationNotFoundFmt  = "「%s」って駅が見つからへんかったわ。もう一回教えてくれる？"
	arrivalAskFmt       = "出発は「%s」やね。次は降りる駅（到着側）を教えてな。"
	lineChooseFmt       = "%sから%sやと、路線がいくつかあるみたいやわ。どれに乗る？\n%s"
	lineSavedGarbageFmt = "覚えたで！路線は「%s」やな。\n\n最後に、ゴミの日を教えてくれる？\n（例：「可燃ゴミは月曜日」みたいに、一つずつ教えてな。終わったら「おわり」と入力してや）"
	noCommonLineGarbage = "その2つの駅、同じ路線が見つからへんかったわ。路線はまた今度設定しよか。\n\n最後に、ゴミの日を教えてくれる？\n（例：「可燃ゴミは月曜日」みたいに、一つずつ教えてな。終わったら「おわり」と入力してや）"

	garbageSavedFmt   = "了解、「%s」が%s曜日やね。他にもあったら教えてな。（終わったら「おわり」と入力）"
	garbageFormatHint = "ごめん、うまく聞き取れへんかったわ。「〇〇ゴミは△曜日」の形で教えてくれる？"
	setupDoneText     = "設定おおきに！これで全部や！\nこれからは毎朝通知するし、リマインダーとか献立も聞いてな！"

	locationReaskText = "ごめん、設定がようわからんくなってもうたわ。もう一回、地域から教えてくれる？\n（例：東京都豊島区）"

	reminderSavedFmt = "あいよ！\n%sに「%s」やね。覚えとく！"
	fallbackText     = "うんうん。"
	resetDoneText    = "設定をリセットしたで。もう一度話しかけて、最初から設定し直してな。"
	troubleText      = "ごめん、ちょっと調子が悪いみたいやわ。もう一回試してくれる？"
)
